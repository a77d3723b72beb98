// Package shell provides the interactive sheetkit REPL. One session holds one
// open workbook and a current sheet; every command edits that Document in
// memory until it is saved.
package shell

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/klytics/sheetkit/internal/workbook"
)

// Session manages an interactive sheetkit shell session.
type Session struct {
	Doc     *workbook.Document
	Path    string
	Current *workbook.Worksheet

	Save    workbook.SaveOptions
	Options []workbook.Option

	LastOutput     string
	CommandHistory []string
	HistoryFile    string
	StartTime      time.Time
	dirty          bool
}

type command struct {
	usage string
	help  string
	run   func(s *Session, args []string) (string, error)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"open":     {"open <file>", "load a workbook", (*Session).open},
		"new":      {"new [title]", "start an empty workbook", (*Session).newDoc},
		"sheets":   {"sheets", "list sheets with code names and paths", (*Session).sheets},
		"use":      {"use <title>", "select the current sheet", (*Session).use},
		"get":      {"get <cell>", "show a cell", (*Session).get},
		"set":      {"set <cell> <value>", "store a value (\"=...\" stores a formula)", (*Session).set},
		"clear":    {"clear <cell>", "empty a cell", (*Session).clear},
		"rows":     {"rows", "print the current sheet as CSV-like rows", (*Session).rows},
		"clone":    {"clone [title]", "copy the current sheet and select the copy", (*Session).clone},
		"rename":   {"rename <title>", "rename the current sheet", (*Session).rename},
		"remove":   {"remove", "delete the current sheet", (*Session).remove},
		"move":     {"move <index>", "move the current sheet to a tab position", (*Session).move},
		"activate": {"activate", "open the workbook on the current sheet", (*Session).activate},
		"parts":    {"parts", "list the opaque parts of the current sheet", (*Session).parts},
		"paths":    {"paths", "list every path the next save writes", (*Session).paths},
		"save":     {"save [file]", "write the workbook", (*Session).save},
	}
}

// NewSession creates a new interactive session.
func NewSession() (*Session, error) {
	home, _ := os.UserHomeDir()
	histFile := filepath.Join(home, ".sheetkit", "shell_history")

	// Ensure parent dir exists
	os.MkdirAll(filepath.Dir(histFile), 0755)

	return &Session{
		HistoryFile: histFile,
		StartTime:   time.Now(),
	}, nil
}

// Prompt shows the file and the current sheet.
func (s *Session) Prompt() string {
	if s.Doc == nil {
		return "sheetkit> "
	}
	name := "(new)"
	if s.Path != "" {
		name = filepath.Base(s.Path)
	}
	if s.dirty {
		name += "*"
	}
	if s.Current != nil {
		return fmt.Sprintf("%s[%s]> ", name, s.Current.Title())
	}
	return name + "> "
}

// Run starts the REPL loop. Blocks until 'exit' or Ctrl+D.
func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.Prompt(),
		HistoryFile:     s.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(s.buildCompleter()...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("sheetkit — Interactive Shell")
	fmt.Println("Type 'help' for commands, 'exit' to quit.")
	fmt.Println()

	for {
		rl.SetPrompt(s.Prompt())
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.CommandHistory = append(s.CommandHistory, line)

		switch line {
		case "exit", "quit":
			if s.dirty {
				fmt.Println("Unsaved changes discarded.")
			}
			fmt.Printf("\nSession ended. %d commands run in %s.\n",
				len(s.CommandHistory)-1, formatDuration(time.Since(s.StartTime)))
			return nil
		case "help":
			fmt.Print(Help())
		case "history":
			for i, cmd := range s.CommandHistory {
				fmt.Printf("  %d  %s\n", i+1, cmd)
			}
		default:
			output, err := s.Eval(ctx, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			} else if output != "" {
				fmt.Print(output)
				if !strings.HasSuffix(output, "\n") {
					fmt.Println()
				}
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}

// Eval runs a single command line against the session and returns its output.
func (s *Session) Eval(ctx context.Context, line string) (string, error) {
	args, err := SplitArgs(line)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return "", fmt.Errorf("unknown command %q — type 'help' for a list", args[0])
	}
	output, err := cmd.run(s, args[1:])
	if err != nil {
		return "", err
	}
	s.LastOutput = output
	return output, nil
}

// SplitArgs splits a command line on spaces. Double-quoted arguments may
// contain spaces and Go escape sequences.
func SplitArgs(line string) ([]string, error) {
	var args []string
	for i := 0; i < len(line); {
		switch {
		case line[i] == ' ' || line[i] == '\t':
			i++
		case line[i] == '"':
			end := i + 1
			for end < len(line) && line[end] != '"' {
				if line[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(line) {
				return nil, fmt.Errorf("unterminated quote in %q", line)
			}
			arg, err := strconv.Unquote(line[i : end+1])
			if err != nil {
				return nil, fmt.Errorf("bad quoted argument %s", line[i:end+1])
			}
			args = append(args, arg)
			i = end + 1
		default:
			end := strings.IndexAny(line[i:], " \t")
			if end < 0 {
				end = len(line) - i
			}
			args = append(args, line[i:i+end])
			i += end
		}
	}
	return args, nil
}

// Complete returns tab-completion candidates for the given input.
func (s *Session) Complete(input string) []string {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return commandNames()
	}

	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, name := range commandNames() {
			if strings.HasPrefix(name, parts[0]) {
				matches = append(matches, name)
			}
		}
		return matches
	}

	if parts[0] == "use" {
		prefix := strings.TrimPrefix(strings.TrimLeft(input[len("use"):], " "), `"`)
		var matches []string
		for _, title := range s.titles() {
			if strings.HasPrefix(title, prefix) {
				matches = append(matches, title)
			}
		}
		return matches
	}
	return nil
}

func (s *Session) titles() []string {
	if s.Doc == nil {
		return nil
	}
	var out []string
	for _, ws := range s.Doc.Sheets() {
		out = append(out, ws.Title())
	}
	return out
}

func commandNames() []string {
	names := []string{"help", "history", "exit", "quit"}
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Help lists the shell commands.
func Help() string {
	var sb strings.Builder
	sb.WriteString("Workbook commands:\n\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		sb.WriteString(fmt.Sprintf("  %-20s %s\n", c.usage, c.help))
	}
	sb.WriteString("\nShell commands:\n")
	sb.WriteString("  help                 show this help\n")
	sb.WriteString("  history              show command history\n")
	sb.WriteString("  exit                 leave the shell\n")
	return sb.String()
}

func (s *Session) buildCompleter() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, name := range commandNames() {
		if name == "use" {
			items = append(items, readline.PcItem(name, readline.PcItemDynamic(func(string) []string {
				return s.titles()
			})))
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	return items
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}
