package entities

import (
	"errors"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		value   string
		want    Severity
		wantErr bool
	}{
		{"fatal", SeverityFatal, false},
		{"WARNING", SeverityWarning, false},
		{" disabled ", SeverityDisabled, false},
		{"", SeverityUnset, false},
		{"loud", SeverityInvalid, true},
	}

	for _, tt := range tests {
		got, err := ParseSeverity(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeverity(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParseUpdateSchedule(t *testing.T) {
	tests := []struct {
		value   string
		want    UpdateSchedule
		wantErr bool
	}{
		{"auto", UpdatesAuto, false},
		{"Daily", UpdatesDaily, false},
		{"disabled", UpdatesDisabled, false},
		{"offline", UpdatesDisabled, false},
		{"weekly", UpdatesDisabled, true},
	}

	for _, tt := range tests {
		got, err := ParseUpdateSchedule(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseUpdateSchedule(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseUpdateSchedule(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr string
	}{
		{
			name:   "defaults",
			policy: DefaultPolicy(),
		},
		{
			name:   "all disabled is valid",
			policy: Policy{Fingerprint: SeverityDisabled, Metadata: SeverityDisabled},
		},
		{
			name:    "metadata reported before fingerprint",
			policy:  Policy{},
			wantErr: "missing setting: metadata",
		},
		{
			name:    "missing fingerprint",
			policy:  Policy{Metadata: SeverityWarning},
			wantErr: "missing setting: fingerprint",
		},
		{
			name:    "invalid metadata",
			policy:  Policy{Fingerprint: SeverityInvalid, Metadata: SeverityInvalid},
			wantErr: `invalid mode for metadata: "invalid"`,
		},
		{
			name:    "invalid fingerprint",
			policy:  Policy{Fingerprint: SeverityInvalid, Metadata: SeverityFatal},
			wantErr: `invalid mode for fingerprint: "invalid"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected %q, got nil", tt.wantErr)
			}
			var pve *PolicyValidationError
			if !errors.As(err, &pve) {
				t.Fatalf("Validate() error type = %T, want *PolicyValidationError", err)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPolicy_SetSeverity(t *testing.T) {
	var policy Policy
	policy.SetSeverity(CategoryMetadata, "Fatal")
	policy.SetSeverity(CategoryFingerprint, "loud")

	if policy.Metadata != SeverityFatal {
		t.Errorf("Metadata = %v, want fatal", policy.Metadata)
	}
	if policy.Fingerprint != SeverityInvalid {
		t.Errorf("Fingerprint = %v, want invalid", policy.Fingerprint)
	}

	err := policy.Validate()
	want := `invalid mode for fingerprint: "loud"`
	if err == nil || err.Error() != want {
		t.Errorf("Validate() = %v, want %q", err, want)
	}
}

func TestPolicy_FatalAndEnabled(t *testing.T) {
	policy := Policy{Fingerprint: SeverityFatal, Metadata: SeverityDisabled}

	if !policy.IsFatal(CategoryFingerprint) || !policy.IsEnabled(CategoryFingerprint) {
		t.Error("fatal fingerprint should be fatal and enabled")
	}
	if policy.IsFatal(CategoryMetadata) || policy.IsEnabled(CategoryMetadata) {
		t.Error("disabled metadata should be neither fatal nor enabled")
	}

	var unset Policy
	if unset.IsFatal(CategoryMetadata) || unset.IsEnabled(CategoryMetadata) {
		t.Error("unset category should be neither fatal nor enabled")
	}

	warn := Policy{Metadata: SeverityWarning}
	if warn.IsFatal(CategoryMetadata) || !warn.IsEnabled(CategoryMetadata) {
		t.Error("warning should be enabled but not fatal")
	}
}

func TestSeverity_UnmarshalText(t *testing.T) {
	var s Severity
	if err := s.UnmarshalText([]byte("bogus")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if s != SeverityInvalid {
		t.Errorf("UnmarshalText(bogus) = %v, want invalid", s)
	}

	var u UpdateSchedule
	if err := u.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UpdateSchedule.UnmarshalText(bogus) expected error")
	}
}
