package pipeline

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ActionFunc is the signature for pipeline action handlers.
type ActionFunc func(ctx context.Context, s *Session, step Step) (string, error)

// Logger receives progress messages.
type Logger interface {
	Verbose(format string, args ...interface{})
	Info(format string, args ...interface{})
}

// Executor runs pipeline steps sequentially, resolving variable interpolation between steps.
type Executor struct {
	actions map[string]ActionFunc
	writes  map[string]bool
	results map[string]*StepResult
	log     Logger
	dryRun  bool
}

// NewExecutor creates a new pipeline executor logging to log.
func NewExecutor(log Logger) *Executor {
	return &Executor{
		actions: make(map[string]ActionFunc),
		writes:  make(map[string]bool),
		results: make(map[string]*StepResult),
		log:     log,
	}
}

// SetDryRun enables dry-run mode. Edits run against the in-memory Document;
// steps that write files are skipped with a description of what they would do.
func (e *Executor) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// RegisterAction adds an action handler to the executor's registry.
func (e *Executor) RegisterAction(name string, fn ActionFunc) {
	e.actions[name] = fn
}

// RegisterWriteAction adds an action that writes to the file system and is
// skipped in dry-run mode.
func (e *Executor) RegisterWriteAction(name string, fn ActionFunc) {
	e.actions[name] = fn
	e.writes[name] = true
}

// Run executes all steps in the pipeline sequentially against s.
func (e *Executor) Run(ctx context.Context, p *Pipeline, s *Session) ([]StepResult, error) {
	var results []StepResult

	e.log.Verbose("Running pipeline: %s (v%s)", p.Name, p.Version)
	if e.dryRun {
		e.log.Verbose("  (dry-run mode — nothing will be written)")
	}

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		e.log.Verbose("[%d/%d] Running step: %s (%s)", i+1, len(p.Steps), step.ID, step.Action)

		resolved := e.resolveStepVariables(step)

		if e.dryRun && e.writes[resolved.Action] {
			msg := fmt.Sprintf("[DRY-RUN] Would run %s to %s", resolved.Action, target(resolved))
			e.log.Verbose("  %s", msg)
			e.record(&results, StepResult{StepID: resolved.ID, Output: msg})
			continue
		}

		action, ok := e.actions[resolved.Action]
		if !ok {
			err := fmt.Errorf("unknown action %q in step %q — registered actions: %v",
				resolved.Action, resolved.ID, e.actionNames())

			if resolved.OnFailure == "skip" {
				e.log.Verbose("  Skipping step %s: %s", resolved.ID, err)
				e.record(&results, StepResult{StepID: resolved.ID, Error: err})
				continue
			}
			return results, err
		}

		start := time.Now()
		output, err := action(ctx, s, resolved)
		e.record(&results, StepResult{StepID: resolved.ID, Output: output, Error: err})
		e.log.Verbose("  Completed in %s", time.Since(start).Round(time.Millisecond))

		if err != nil {
			if resolved.OnFailure == "skip" {
				e.log.Verbose("  Step %s failed (skipping): %s", resolved.ID, err)
				continue
			}
			return results, fmt.Errorf("step %q failed: %w", resolved.ID, err)
		}
	}

	return results, nil
}

func (e *Executor) record(results *[]StepResult, r StepResult) {
	*results = append(*results, r)
	e.results[r.StepID] = &r
}

func target(step Step) string {
	if step.Output != "" {
		return step.Output
	}
	if step.Input != "" {
		return step.Input
	}
	return "the opened file"
}

var interpolationPattern = regexp.MustCompile(`\$\{\{\s*([^}]+)\s*\}\}`)

func (e *Executor) resolveStepVariables(step Step) Step {
	resolved := step
	resolved.Input = e.interpolate(step.Input)
	resolved.Output = e.interpolate(step.Output)
	resolved.Sheet = e.interpolate(step.Sheet)
	resolved.Title = e.interpolate(step.Title)
	resolved.Cell = e.interpolate(step.Cell)
	resolved.Value = e.interpolate(step.Value)

	if resolved.Options != nil {
		newOpts := make(map[string]string, len(resolved.Options))
		for k, v := range resolved.Options {
			newOpts[k] = e.interpolate(v)
		}
		resolved.Options = newOpts
	}

	return resolved
}

func (e *Executor) interpolate(s string) string {
	return interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := interpolationPattern.FindStringSubmatch(match)
		if len(inner) < 2 {
			return match
		}
		expr := strings.TrimSpace(inner[1])

		// Handle steps.<id>.output
		if strings.HasPrefix(expr, "steps.") {
			parts := strings.Split(expr, ".")
			if len(parts) >= 3 && parts[2] == "output" {
				if result, ok := e.results[parts[1]]; ok {
					return result.Output
				}
			}
		}

		if expr == "date.today" {
			return time.Now().Format("2006-01-02")
		}
		if expr == "date.now" || expr == "date.timestamp" {
			return time.Now().Format(time.RFC3339)
		}

		if strings.HasPrefix(expr, "env.") {
			return os.Getenv(strings.TrimPrefix(expr, "env."))
		}

		return match
	})
}

func (e *Executor) actionNames() []string {
	names := make([]string, 0, len(e.actions))
	for name := range e.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
