package orchestration

import (
	"fmt"
	"path/filepath"
)

// FilterTestIDs returns the ids matching at least one glob pattern, in the
// order of ids. An empty patterns slice returns ids unchanged. A pattern
// that matches nothing is an error, so a typo never silently shrinks a run.
func FilterTestIDs(ids []string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return ids, nil
	}

	used := make([]bool, len(patterns))
	var matched []string
	for _, id := range ids {
		ok, err := matchesAny(id, patterns, used)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, id)
		}
	}

	for i, p := range patterns {
		if !used[i] {
			return nil, fmt.Errorf("test selector %q matches no test", p)
		}
	}
	return matched, nil
}

// matchesAny reports whether id matches any pattern and marks every pattern
// that matched.
func matchesAny(id string, patterns []string, used []bool) (bool, error) {
	found := false
	for i, p := range patterns {
		ok, err := filepath.Match(p, id)
		if err != nil {
			return false, fmt.Errorf("invalid test selector %q: %w", p, err)
		}
		if ok {
			used[i] = true
			found = true
		}
	}
	return found, nil
}
