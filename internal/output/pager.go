package output

import (
	"os"
	"os/exec"
	"strings"
)

// defaultPageHeight is used when LINES is not set.
const defaultPageHeight = 40

// ShouldPage returns true if output should be piped through a pager: stdout
// is a terminal and the content is taller than termHeight.
func ShouldPage(content string, termHeight int) bool {
	if !isTerminal() {
		return false
	}
	lines := strings.Count(content, "\n")
	return lines > termHeight
}

// Page pipes content through the user's preferred pager (PAGER env, or "less").
func Page(content string) error {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}

	cmd := exec.Command(pager)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// PrintLong writes content to stdout, through the pager when it does not fit
// on one screen.
func PrintLong(content string) error {
	if ShouldPage(content, defaultPageHeight) {
		if err := Page(content); err == nil {
			return nil
		}
	}
	_, err := os.Stdout.WriteString(content)
	return err
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
