package job

import (
	"slices"
	"strings"
)

// ID is a process-unique job identifier.
type ID string

// Kind says whether a job runs once or re-runs on document changes.
type Kind string

const (
	OneOff     Kind = "one_off"
	Continuous Kind = "continuous"
)

// KindOf maps the continuous flag used by callers onto a Kind.
func KindOf(continuous bool) Kind {
	if continuous {
		return Continuous
	}
	return OneOff
}

// SelectionMode is how a job picks its checkers.
type SelectionMode string

const (
	SelectAll      SelectionMode = "all"
	SelectSingle   SelectionMode = "single"
	SelectMultiple SelectionMode = "multiple"
)

// Selection names the checkers a job runs. It is immutable once built.
type Selection struct {
	mode SelectionMode
	ids  []string
}

// All selects every registered checker.
func All() Selection {
	return Selection{mode: SelectAll}
}

// Single selects exactly one checker.
func Single(id string) Selection {
	return Selection{mode: SelectSingle, ids: []string{id}}
}

// Multiple selects the given checkers. Duplicates are dropped.
func Multiple(ids ...string) Selection {
	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	return Selection{mode: SelectMultiple, ids: uniq}
}

// Mode returns the selection mode. The zero Selection behaves as All.
func (s Selection) Mode() SelectionMode {
	if s.mode == "" {
		return SelectAll
	}
	return s.mode
}

// IDs returns a copy of the explicitly selected checker ids.
func (s Selection) IDs() []string {
	return slices.Clone(s.ids)
}

// Selects reports whether the checker with the given id is part of the
// selection.
func (s Selection) Selects(checkerID string) bool {
	if s.Mode() == SelectAll {
		return true
	}
	return slices.Contains(s.ids, checkerID)
}

func (s Selection) String() string {
	if s.Mode() == SelectAll {
		return string(SelectAll)
	}
	return string(s.mode) + "(" + strings.Join(s.ids, ",") + ")"
}

// MarshalText renders the selection for JSON output.
func (s Selection) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
