package status

import "testing"

func TestCode_String(t *testing.T) {
	cases := []struct {
		code Code
		want string
	}{
		{Waiting, "WAITING"},
		{InProgress, "IN_PROGRESS"},
		{Completed, "COMPLETED"},
		{Failed, "FAILED"},
		{TimedOut, "TIMED_OUT"},
		{DependencyUnavailable, "DEPENDENCY_UNAVAILABLE"},
		{Code(200), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.code.String(); got != tc.want {
			t.Errorf("Code(%d).String() = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestCode_Terminal(t *testing.T) {
	if Waiting.Terminal() {
		t.Error("Waiting should not be terminal")
	}
	if InProgress.Terminal() {
		t.Error("InProgress should not be terminal")
	}
	if !Completed.Terminal() {
		t.Error("Completed should be terminal")
	}
	if !TimedOut.Terminal() {
		t.Error("TimedOut should be terminal")
	}
}

func TestCode_ExitCode(t *testing.T) {
	if Completed.ExitCode() != 0 {
		t.Errorf("Completed.ExitCode() = %d, want 0", Completed.ExitCode())
	}
	if Failed.ExitCode() == 0 {
		t.Error("Failed.ExitCode() must not be 0")
	}
	if TimedOut.ExitCode() == 0 {
		t.Error("TimedOut.ExitCode() must not be 0")
	}
	if Failed.ExitCode() == Completed.ExitCode() {
		t.Error("Failed and Completed must not share an exit code")
	}
}
