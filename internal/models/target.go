package models

import (
	"errors"
	"fmt"
	"strings"
)

// TargetMode selects how the campaign audience is built.
type TargetMode string

const (
	TargetAll            TargetMode = "all"
	TargetByNationality  TargetMode = "by_nationality"
	TargetByPoints       TargetMode = "by_points_threshold"
	TargetExplicitIDs    TargetMode = "explicit_ids"
	TargetManualContacts TargetMode = "manual_contacts"
)

// ErrInvalidTargetSpec is returned when a spec's mode and fields disagree.
var ErrInvalidTargetSpec = errors.New("invalid target spec")

// TargetSpec is the operator's audience selection. Exactly one mode-specific
// field may be populated, and it must match Mode.
type TargetSpec struct {
	Mode            TargetMode `json:"mode" yaml:"mode"`
	Nationality     string     `json:"nationality,omitempty" yaml:"nationality,omitempty"`
	PointsThreshold int        `json:"points_threshold,omitempty" yaml:"points_threshold,omitempty"`
	ExplicitIDs     []string   `json:"explicit_ids,omitempty" yaml:"explicit_ids,omitempty"`
	// ManualContacts is the raw free-text block from the operator,
	// split on commas and newlines at resolve time.
	ManualContacts string `json:"manual_contacts,omitempty" yaml:"manual_contacts,omitempty"`
}

// Validate checks the exactly-one-field invariant.
func (s TargetSpec) Validate() error {
	extra := func(field string) error {
		return fmt.Errorf("%w: %s set for mode %q", ErrInvalidTargetSpec, field, s.Mode)
	}

	if s.Mode != TargetByNationality && s.Nationality != "" {
		return extra("nationality")
	}
	if s.Mode != TargetByPoints && s.PointsThreshold != 0 {
		return extra("points_threshold")
	}
	if s.Mode != TargetExplicitIDs && len(s.ExplicitIDs) > 0 {
		return extra("explicit_ids")
	}
	if s.Mode != TargetManualContacts && s.ManualContacts != "" {
		return extra("manual_contacts")
	}

	switch s.Mode {
	case TargetAll:
		return nil
	case TargetByNationality:
		if s.Nationality == "" {
			return fmt.Errorf("%w: nationality is required", ErrInvalidTargetSpec)
		}
	case TargetByPoints:
		if s.PointsThreshold <= 0 {
			return fmt.Errorf("%w: points_threshold must be positive", ErrInvalidTargetSpec)
		}
	case TargetExplicitIDs:
		if len(s.ExplicitIDs) == 0 {
			return fmt.Errorf("%w: explicit_ids is required", ErrInvalidTargetSpec)
		}
	case TargetManualContacts:
		if len(SplitManualContacts(s.ManualContacts)) == 0 {
			return fmt.Errorf("%w: manual_contacts is empty after trimming", ErrInvalidTargetSpec)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidTargetSpec, s.Mode)
	}
	return nil
}

// SplitManualContacts splits a free-text block on commas and newlines, trims
// each token and drops empty ones. No format validation beyond trimming: the
// manual mode deliberately accepts arbitrary non-customer numbers.
func SplitManualContacts(raw string) []string {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	contacts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			contacts = append(contacts, tok)
		}
	}
	return contacts
}
