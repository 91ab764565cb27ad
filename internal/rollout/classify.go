package rollout

import "strings"

// DefaultFailurePhrases are control-plane event fragments that mean the
// rollout cannot converge: tasks dying on start, no capacity to place them,
// or ECS giving up on the deployment. Kept as data so the classifier is
// testable apart from the poll loop and extendable without touching it.
var DefaultFailurePhrases = []string{
	"was stopped",
	"unable to place a task",
	"deployment failed",
	"rolled back",
}

// classifyEvent reports whether an event message matches a failure phrase.
// Matching is case-insensitive substring matching — ECS event text is prose,
// not structured codes.
func classifyEvent(message string, phrases []string) bool {
	lowered := strings.ToLower(message)
	for _, phrase := range phrases {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
