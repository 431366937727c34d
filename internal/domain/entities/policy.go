package entities

import (
	"fmt"
	"strings"
)

// Category names a vulnerability check
type Category string

const (
	CategoryFingerprint Category = "fingerprint"
	CategoryMetadata    Category = "metadata"
)

// Categories lists every check category in evaluation order
var Categories = []Category{CategoryFingerprint, CategoryMetadata}

// Severity governs whether a finding fails the run, is only reported,
// or whether the check runs at all
type Severity int

const (
	SeverityUnset Severity = iota
	SeverityFatal
	SeverityWarning
	SeverityDisabled
	// SeverityInvalid marks a configured value that could not be parsed
	SeverityInvalid
)

// Severities lists the recognized severity values
var Severities = []Severity{SeverityWarning, SeverityFatal, SeverityDisabled}

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityWarning:
		return "warning"
	case SeverityDisabled:
		return "disabled"
	case SeverityInvalid:
		return "invalid"
	default:
		return ""
	}
}

// Valid reports whether s is one of the recognized severity values
func (s Severity) Valid() bool {
	return s == SeverityFatal || s == SeverityWarning || s == SeverityDisabled
}

// ParseSeverity parses a severity name case-insensitively.
// The empty string parses to SeverityUnset.
func ParseSeverity(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return SeverityUnset, nil
	case "fatal":
		return SeverityFatal, nil
	case "warning":
		return SeverityWarning, nil
	case "disabled":
		return SeverityDisabled, nil
	default:
		return SeverityInvalid, fmt.Errorf("unrecognized severity %q", value)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Unrecognized values become SeverityInvalid so validation can report them.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, _ := ParseSeverity(string(text))
	*s = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UpdateSchedule controls when the vulnerability database is refreshed
type UpdateSchedule int

const (
	UpdatesDisabled UpdateSchedule = iota
	UpdatesAuto
	UpdatesDaily
)

func (u UpdateSchedule) String() string {
	switch u {
	case UpdatesAuto:
		return "auto"
	case UpdatesDaily:
		return "daily"
	default:
		return "disabled"
	}
}

// ParseUpdateSchedule parses a schedule name case-insensitively.
// "offline" is accepted as an alias of "disabled".
func ParseUpdateSchedule(value string) (UpdateSchedule, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "auto":
		return UpdatesAuto, nil
	case "daily":
		return UpdatesDaily, nil
	case "disabled", "offline", "":
		return UpdatesDisabled, nil
	default:
		return UpdatesDisabled, fmt.Errorf("unrecognized update schedule %q", value)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (u *UpdateSchedule) UnmarshalText(text []byte) error {
	parsed, err := ParseUpdateSchedule(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (u UpdateSchedule) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// Policy maps each check category to a severity and names the update schedule.
// It is constructed once from configuration and passed by value.
type Policy struct {
	Fingerprint Severity       `yaml:"fingerprint" json:"fingerprint"`
	Metadata    Severity       `yaml:"metadata" json:"metadata"`
	Updates     UpdateSchedule `yaml:"updates" json:"updates"`

	// Raw holds the configured text of each severity, quoted in validation errors
	Raw map[Category]string `yaml:"-" json:"-"`
}

// SetSeverity parses value as the severity of category and remembers the
// configured text. Unrecognized values are kept as SeverityInvalid.
func (p *Policy) SetSeverity(category Category, value string) {
	parsed, _ := ParseSeverity(value)
	switch category {
	case CategoryFingerprint:
		p.Fingerprint = parsed
	case CategoryMetadata:
		p.Metadata = parsed
	default:
		return
	}
	if p.Raw == nil {
		p.Raw = make(map[Category]string)
	}
	p.Raw[category] = value
}

// DefaultPolicy returns the defaults of the build step:
// warn on both checks and synchronize before every run
func DefaultPolicy() Policy {
	return Policy{
		Fingerprint: SeverityWarning,
		Metadata:    SeverityWarning,
		Updates:     UpdatesAuto,
	}
}

// Severity returns the configured severity for a category
func (p Policy) Severity(category Category) Severity {
	switch category {
	case CategoryFingerprint:
		return p.Fingerprint
	case CategoryMetadata:
		return p.Metadata
	default:
		return SeverityUnset
	}
}

// requiredCategories are validated in this order
var requiredCategories = []Category{CategoryMetadata, CategoryFingerprint}

// Validate checks that every required category maps to a recognized
// severity and returns a *PolicyValidationError for the first that does not
func (p Policy) Validate() error {
	for _, category := range requiredCategories {
		severity := p.Severity(category)
		if severity == SeverityUnset {
			return &PolicyValidationError{Category: category, Missing: true}
		}
		if !severity.Valid() {
			value, ok := p.Raw[category]
			if !ok {
				value = severity.String()
			}
			return &PolicyValidationError{Category: category, Value: value}
		}
	}
	return nil
}

// IsFatal reports whether findings in category fail the run.
// Unset categories are not fatal.
func (p Policy) IsFatal(category Category) bool {
	return p.Severity(category) == SeverityFatal
}

// IsEnabled reports whether category is set and not disabled.
// Unset categories are not enabled.
func (p Policy) IsEnabled(category Category) bool {
	severity := p.Severity(category)
	return severity != SeverityUnset && severity != SeverityDisabled
}

// UpdateSchedule returns the database update schedule
func (p Policy) UpdateSchedule() UpdateSchedule {
	return p.Updates
}
