package domain

import "errors"

type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeTransientError Outcome = "transient_error"
	OutcomeEmpty          Outcome = "empty"
)

// ClassifyOutcome maps an adapter return pair onto an Outcome.
func ClassifyOutcome(records []Record, err error) Outcome {
	switch {
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	case err != nil:
		return OutcomeTransientError
	case len(records) == 0:
		return OutcomeEmpty
	default:
		return OutcomeSuccess
	}
}
