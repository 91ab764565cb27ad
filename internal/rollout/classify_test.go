package rollout

import "testing"

func TestClassifyEvent(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"(service acme) (task 123) was stopped (OutOfMemoryError)", true},
		{"service acme was unable to place a task because no container instance met its requirements", true},
		{"(service acme) deployment failed: tasks failed to start", true},
		{"(service acme) deployment ecs-svc/1 rolled back due to circuit breaker", true},
		{"(service acme) has started 1 tasks: (task 123)", false},
		{"(service acme) has reached a steady state", false},
		{"(service acme) registered 1 targets", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := classifyEvent(tc.message, DefaultFailurePhrases); got != tc.want {
			t.Errorf("classifyEvent(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}

func TestClassifyEventIsCaseInsensitive(t *testing.T) {
	if !classifyEvent("Task WAS STOPPED unexpectedly", DefaultFailurePhrases) {
		t.Fatal("classifyEvent() = false, want true for upper-cased phrase")
	}
}

func TestClassifyEventCustomPhrases(t *testing.T) {
	phrases := []string{"circuit breaker"}
	if classifyEvent("task was stopped", phrases) {
		t.Fatal("classifyEvent() matched a phrase outside the configured list")
	}
	if !classifyEvent("deployment circuit breaker triggered", phrases) {
		t.Fatal("classifyEvent() missed a configured phrase")
	}
}
