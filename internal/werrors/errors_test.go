package werrors

import (
	"errors"
	"testing"

	"github.com/ShaharBand/fluxly/internal/status"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want status.Code
	}{
		{"nil", nil, status.Completed},
		{"timeout", Timeout("too slow"), status.TimedOut},
		{"infrastructure", Infrastructure("db down", nil), status.InfrastructureError},
		{"data", Data("bad payload", nil), status.DataError},
		{"prerequisite", PrerequisiteFail("empty graph"), status.PrerequisiteFail},
		{"api", APICallFailure("5xx", nil), status.APICallFailure},
		{"network", NetworkFailure("refused", nil), status.NetworkFailure},
		{"validation", DataValidationFailure("bad city", nil), status.DataValidationFailure},
		{"dependency", DependencyUnavailable("no client", nil), status.DependencyUnavailable},
		{"plain", errors.New("boom"), status.Failed},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("%s: Classify() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestClassName(t *testing.T) {
	if got := ClassName(Timeout("too slow")); got != "TimeoutException" {
		t.Errorf("ClassName(Timeout) = %q, want TimeoutException", got)
	}
	if got := ClassName(DependencyUnavailable("no client", nil)); got != "DependencyUnavailableException" {
		t.Errorf("ClassName(DependencyUnavailable) = %q, want DependencyUnavailableException", got)
	}
	if got := ClassName(errors.New("boom")); got != "*errors.errorString" {
		t.Errorf("ClassName(plain error) = %q, want *errors.errorString", got)
	}
}

func TestStatusError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Infrastructure("wrapped", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}
