package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Confirm asks a yes/no question on stderr and reads the answer from stdin.
// Non-interactive runs refuse with an error carrying bypassHint (e.g.
// "use --yes to skip") so scripts fail loudly instead of hanging.
func Confirm(question, bypassHint string) (bool, error) {
	if !IsInteractive() {
		return false, fmt.Errorf("confirmation required in non-interactive mode: %s", bypassHint)
	}

	fmt.Fprint(os.Stderr, AccentStyle.Render("?")+" "+question+" "+MutedStyle.Render("[y/N]")+" ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
