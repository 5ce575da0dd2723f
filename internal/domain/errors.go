package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited marks a provider refusal due to quota or request rate.
	ErrRateLimited = errors.New("rate limited")
	// ErrCacheUnavailable wraps result cache backend failures.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s)", e.Source, e.RetryAfter)
	}
	return e.Source + ": rate limited"
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// TransportError covers network, TLS and unexpected HTTP status failures.
type TransportError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StorePersistError is returned when the keyword store cannot be written.
type StorePersistError struct {
	Op  string
	Err error
}

func (e *StorePersistError) Error() string {
	return fmt.Sprintf("keyword store %s: %v", e.Op, e.Err)
}

func (e *StorePersistError) Unwrap() error {
	return e.Err
}
