package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSource lists a mounted directory.
type LocalSource struct {
	dir string
}

func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{dir: dir}
}

func (s *LocalSource) List(ctx context.Context) ([]Candidate, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: folder %s does not exist, it might not be mounted", ErrSourceUnavailable, s.dir)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, s.dir)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read directory %s: %v", ErrSourceUnavailable, s.dir, err)
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			// removed between ReadDir and Stat, or a link to a directory
			continue
		}

		candidates = append(candidates, NewCandidate(entry.Name(), fi.ModTime(), func(ctx context.Context) ([]byte, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return os.ReadFile(path)
		}))
	}

	sortCandidates(candidates)
	return candidates, nil
}

func (s *LocalSource) Close() error {
	return nil
}
