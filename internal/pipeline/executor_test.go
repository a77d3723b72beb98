package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/klytics/sheetkit/internal/logging"
)

func newTestExecutor() *Executor {
	return NewExecutor(logging.NullLogger{})
}

func TestInterpolateDateToday(t *testing.T) {
	e := newTestExecutor()
	result := e.interpolate("report-${{ date.today }}.xlsx")
	today := time.Now().Format("2006-01-02")

	if !strings.Contains(result, today) {
		t.Errorf("expected today's date %q in result %q", today, result)
	}
}

func TestInterpolateDateTimestamp(t *testing.T) {
	e := newTestExecutor()
	result := e.interpolate("Now: ${{ date.timestamp }}")

	if strings.Contains(result, "${{") {
		t.Errorf("timestamp was not interpolated: %q", result)
	}
	year := time.Now().Format("2006")
	if !strings.Contains(result, year) {
		t.Errorf("expected year %q in result %q", year, result)
	}
}

func TestInterpolateEnvVar(t *testing.T) {
	t.Setenv("SHEETKIT_TEST_VAR", "hello_world")

	e := newTestExecutor()
	result := e.interpolate("Value: ${{ env.SHEETKIT_TEST_VAR }}")

	if !strings.Contains(result, "hello_world") {
		t.Errorf("expected 'hello_world' in result %q", result)
	}
}

func TestInterpolateEnvVarEmpty(t *testing.T) {
	os.Unsetenv("SHEETKIT_MISSING_VAR")

	e := newTestExecutor()
	result := e.interpolate("Value: ${{ env.SHEETKIT_MISSING_VAR }}")

	if result != "Value: " {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestInterpolateUnknownExpressionIsKept(t *testing.T) {
	e := newTestExecutor()
	if got := e.interpolate("${{ nope }}"); got != "${{ nope }}" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestStepOutputFlowsToNextStep(t *testing.T) {
	e := newTestExecutor()

	e.RegisterAction("produce", func(ctx context.Context, s *Session, step Step) (string, error) {
		return "Data (2)", nil
	})
	e.RegisterAction("consume", func(ctx context.Context, s *Session, step Step) (string, error) {
		return "received:" + step.Sheet, nil
	})

	p := &Pipeline{
		Name:    "test",
		Version: "1.0",
		Steps: []Step{
			{ID: "step1", Action: "produce"},
			{ID: "step2", Action: "consume", Sheet: "${{ steps.step1.output }}"},
		},
	}

	results, err := e.Run(context.Background(), p, &Session{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Output != "received:Data (2)" {
		t.Errorf("step2: expected 'received:Data (2)', got %q", results[1].Output)
	}
}

func TestUnknownActionReturnsError(t *testing.T) {
	e := newTestExecutor()

	p := &Pipeline{
		Name:  "test",
		Steps: []Step{{ID: "bad_step", Action: "nonexistent.action"}},
	}

	_, err := e.Run(context.Background(), p, &Session{})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	if !strings.Contains(err.Error(), "unknown action") || !strings.Contains(err.Error(), "nonexistent.action") {
		t.Errorf("unexpected error: %s", err)
	}
}

func TestUnknownActionSkipOnFailure(t *testing.T) {
	e := newTestExecutor()
	e.RegisterAction("ok_action", func(ctx context.Context, s *Session, step Step) (string, error) {
		return "ok", nil
	})

	p := &Pipeline{
		Name: "test",
		Steps: []Step{
			{ID: "skip_me", Action: "nonexistent", OnFailure: "skip"},
			{ID: "after_skip", Action: "ok_action"},
		},
	}

	results, err := e.Run(context.Background(), p, &Session{})
	if err != nil {
		t.Fatalf("Run should not fail with on_failure=skip: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("first step should have an error")
	}
	if results[1].Output != "ok" {
		t.Errorf("second step should have run, got output %q", results[1].Output)
	}
}

func TestDryRunSkipsWriteSteps(t *testing.T) {
	e := newTestExecutor()
	e.SetDryRun(true)

	written := false
	e.RegisterWriteAction("save", func(ctx context.Context, s *Session, step Step) (string, error) {
		written = true
		return step.Output, nil
	})
	e.RegisterAction("rename", func(ctx context.Context, s *Session, step Step) (string, error) {
		return step.Title, nil
	})

	p := &Pipeline{
		Name: "test",
		Steps: []Step{
			{ID: "rename", Action: "rename", Title: "Totals"},
			{ID: "save", Action: "save", Output: "out.xlsx"},
		},
	}

	results, err := e.Run(context.Background(), p, &Session{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if written {
		t.Error("save should NOT have been called in dry-run mode")
	}
	if results[0].Output != "Totals" {
		t.Errorf("edit steps still run in dry-run mode, got %q", results[0].Output)
	}
	if !strings.Contains(results[1].Output, "DRY-RUN") || !strings.Contains(results[1].Output, "out.xlsx") {
		t.Errorf("unexpected dry-run output %q", results[1].Output)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	e := newTestExecutor()
	e.RegisterAction("noop", func(ctx context.Context, s *Session, step Step) (string, error) {
		return "", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, &Pipeline{Name: "x", Steps: []Step{{ID: "a", Action: "noop"}}}, &Session{})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParsePipeline(t *testing.T) {
	data := []byte(`
name: monthly
version: "1"
steps:
  - id: open
    action: open
    input: book.xlsx
  - id: move
    action: move
    sheet: Data
    index: 0
`)
	p, err := ParsePipeline(data)
	if err != nil {
		t.Fatalf("ParsePipeline failed: %v", err)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(p.Steps))
	}
	if p.Steps[1].Index == nil || *p.Steps[1].Index != 0 {
		t.Errorf("index not parsed: %+v", p.Steps[1])
	}
}

func TestParsePipelineValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "steps:\n  - id: a\n    action: open\n", "missing a 'name'"},
		{"no steps", "name: x\n", "has no steps"},
		{"missing id", "name: x\nsteps:\n  - action: open\n", "missing an 'id'"},
		{"duplicate id", "name: x\nsteps:\n  - id: a\n    action: open\n  - id: a\n    action: save\n", "duplicate step ID"},
		{"missing action", "name: x\nsteps:\n  - id: a\n", "missing an 'action'"},
		{"bad on_failure", "name: x\nsteps:\n  - id: a\n    action: open\n    on_failure: retry\n", "unknown on_failure"},
		{"not yaml", "name: [", "invalid pipeline YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipeline([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSessionRequiresDocument(t *testing.T) {
	s := &Session{}
	if _, err := s.Sheet(Step{ID: "x", Sheet: "Data"}); err == nil {
		t.Error("expected an error without an open workbook")
	}
}
