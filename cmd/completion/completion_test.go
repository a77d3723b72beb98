package completion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func testRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "sheetkit"}
	root.AddCommand(&cobra.Command{Use: "sheet", Short: "Worksheet operations"})
	root.AddCommand(&cobra.Command{Use: "package", Short: "Package operations"})
	root.AddCommand(NewCommand(root))
	return root
}

func run(t *testing.T, shell string) string {
	t.Helper()
	root := testRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"completion", shell})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestBashCompletion(t *testing.T) {
	if out := run(t, "bash"); !strings.Contains(out, "_sheetkit") {
		t.Error("bash completion should contain _sheetkit function")
	}
}

func TestZshCompletion(t *testing.T) {
	if out := run(t, "zsh"); !strings.Contains(out, "compdef") {
		t.Error("zsh completion should contain compdef")
	}
}

func TestFishCompletion(t *testing.T) {
	if out := run(t, "fish"); !strings.Contains(out, "complete -c sheetkit") {
		t.Error("fish completion should contain 'complete -c sheetkit'")
	}
}

func TestPowerShellCompletion(t *testing.T) {
	if out := run(t, "powershell"); !strings.Contains(out, "sheetkit") {
		t.Error("PowerShell completion should contain sheetkit")
	}
}

func TestUnsupportedShell(t *testing.T) {
	root := testRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"completion", "tcsh"})
	if err := root.Execute(); err == nil {
		t.Error("expected an error for an unsupported shell")
	}
}
