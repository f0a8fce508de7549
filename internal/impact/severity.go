// Package impact analyzes how a change to one entity lands across the
// requirements graph: direct neighbors, second-level effects, bounded
// cascade expansion, and the risk picture they add up to. All analysis is
// read-only over an immutable graph snapshot.
package impact

import (
	"errors"
	"fmt"
)

// Severity ranks how strongly a change lands on an entity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ChangeType classifies the change being analyzed.
type ChangeType string

const (
	ChangeModification      ChangeType = "modification"
	ChangeMajorModification ChangeType = "major_modification"
	ChangeRemoval           ChangeType = "removal"
)

var (
	// ErrUnknownSeverity is returned for a severity outside low..critical.
	ErrUnknownSeverity = errors.New("unknown severity")
	// ErrUnknownChangeType is returned for an unrecognized change type.
	ErrUnknownChangeType = errors.New("unknown change type")
)

// ParseSeverity validates a severity string. Unrecognized values are an
// error, never silently coerced to a default.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), nil
	}
	return "", fmt.Errorf("impact: %w: %q", ErrUnknownSeverity, s)
}

// ParseChangeType validates a change type string. Unrecognized values are
// an error, never silently coerced to a default.
func ParseChangeType(s string) (ChangeType, error) {
	switch ChangeType(s) {
	case ChangeModification, ChangeMajorModification, ChangeRemoval:
		return ChangeType(s), nil
	}
	return "", fmt.Errorf("impact: %w: %q", ErrUnknownChangeType, s)
}

// reduce drops a severity one level, floored at low. Second-level impacts
// always land softer than the direct impact they came through.
func reduce(s Severity) Severity {
	switch s {
	case SeverityCritical:
		return SeverityHigh
	case SeverityHigh:
		return SeverityMedium
	}
	return SeverityLow
}
