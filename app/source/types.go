package source

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrSourceUnavailable is returned when a source cannot be reached or listed.
var ErrSourceUnavailable = errors.New("source unavailable")

type FetchFunc func(ctx context.Context) ([]byte, error)

// Candidate is a file observed at a source during one pass.
type Candidate struct {
	Name       string
	ModifiedAt time.Time // UTC
	fetch      FetchFunc
}

func NewCandidate(name string, modifiedAt time.Time, fetch FetchFunc) Candidate {
	return Candidate{
		Name:       name,
		ModifiedAt: normalizeTime(modifiedAt),
		fetch:      fetch,
	}
}

func (c Candidate) Fetch(ctx context.Context) ([]byte, error) {
	if c.fetch == nil {
		return nil, errors.New("candidate has no fetch function")
	}
	return c.fetch(ctx)
}

// Source enumerates candidate files of one agency. Candidates returned by
// List stay fetchable until Close.
type Source interface {
	List(ctx context.Context) ([]Candidate, error)
	Close() error
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// sortCandidates orders newest first, then by name.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		return a.Name < b.Name
	})
}
