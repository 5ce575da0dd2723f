package search

import (
	"sort"

	"feedstream/aggregator/internal/domain"
)

// Merge unions cached and fresh records keyed by link. A fresh record
// replaces a cached one with the same link. The result is ordered by
// published time, newest first, with undated records last.
func Merge(cached, fresh []domain.Record) []domain.Record {
	if len(cached) == 0 && len(fresh) == 0 {
		return []domain.Record{}
	}

	index := make(map[string]int, len(cached)+len(fresh))
	merged := make([]domain.Record, 0, len(cached)+len(fresh))
	add := func(record domain.Record) {
		if i, ok := index[record.Link]; ok {
			merged[i] = record
			return
		}
		index[record.Link] = len(merged)
		merged = append(merged, record)
	}
	for _, record := range cached {
		add(record)
	}
	for _, record := range fresh {
		add(record)
	}

	SortByRecency(merged)
	return merged
}

// SortByRecency orders records newest first in place. The sort is stable.
func SortByRecency(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Published.After(records[j].Published)
	})
}
