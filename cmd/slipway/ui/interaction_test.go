package ui

import "testing"

func TestEnvTruthyValues(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "one", value: "1", want: true},
		{name: "true", value: "true", want: true},
		{name: "yes", value: "yes", want: true},
		{name: "on", value: "on", want: true},
		{name: "zero", value: "0", want: false},
		{name: "false", value: "false", want: false},
		{name: "empty", value: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SLIPWAY_TEST_TRUTHY", tc.value)
			if got := envTruthy("SLIPWAY_TEST_TRUTHY"); got != tc.want {
				t.Fatalf("envTruthy() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectInteractiveModeRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CI", "")
	if detectInteractiveMode(true) {
		t.Fatal("detectInteractiveMode(true) = true, want false")
	}
}

func TestDetectInteractiveModeRespectsCI(t *testing.T) {
	t.Setenv("CI", "true")
	if detectInteractiveMode(false) {
		t.Fatal("detectInteractiveMode() = true under CI, want false")
	}
}
