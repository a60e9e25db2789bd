package screening

import (
	"errors"
	"testing"

	pkgerrors "screening-platform/pkg/errors"
)

func TestJobStatusString(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   string
	}{
		{StatusQueued, "queued"},
		{StatusRunning, "running"},
		{StatusRefining, "refining"},
		{StatusSucceeded, "succeeded"},
		{StatusFailed, "failed"},
		{JobStatus(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("JobStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestParseJobStatusRoundTrip(t *testing.T) {
	for _, s := range []JobStatus{StatusQueued, StatusRunning, StatusRefining, StatusSucceeded, StatusFailed} {
		if got := ParseJobStatus(s.String()); got != s {
			t.Errorf("ParseJobStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if !StatusSucceeded.Terminal() || !StatusFailed.Terminal() {
		t.Error("succeeded/failed should be terminal")
	}
	if StatusQueued.Terminal() || StatusRunning.Terminal() || StatusRefining.Terminal() {
		t.Error("queued/running/refining should not be terminal")
	}
}

func TestJobValidate(t *testing.T) {
	j := &Job{ID: "j1", CandidateRef: "cand-1", JobDescriptionRef: "Senior Go engineer"}
	if err := j.Validate(); err != nil {
		t.Fatalf("valid job: %v", err)
	}

	bad := &Job{ID: "j2", CandidateRef: "  "}
	err := bad.Validate()
	if err == nil {
		t.Fatal("empty refs should fail validation")
	}
	if !errors.Is(err, pkgerrors.ErrValidationFailure) {
		t.Errorf("validation error should wrap ErrValidationFailure, got %v", err)
	}
}

func TestVerdictHasMissingSkill(t *testing.T) {
	v := &Verdict{MissingSkills: []string{"Kubernetes", "Terraform"}}
	if !v.HasMissingSkill("Kubernetes") {
		t.Error("expected Kubernetes to be missing")
	}
	if v.HasMissingSkill("Go") {
		t.Error("Go should not be reported missing")
	}
}
