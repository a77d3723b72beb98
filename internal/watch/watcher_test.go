package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/workbook"
)

func TestNewWatcher(t *testing.T) {
	w, err := New(Config{
		Directories: []string{t.TempDir()},
		Debounce:    100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if w == nil {
		t.Fatal("expected non-nil watcher")
	}
	w.Close()
}

func TestMatchesRule(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		path string
		want bool
	}{
		{"extension", Rule{Extensions: []string{".xlsx", "xlsm"}}, "/tmp/data.xlsm", true},
		{"other extension", Rule{Extensions: []string{".xlsx"}}, "/tmp/data.xlsm", false},
		{"pattern", Rule{Pattern: "report_*.xlsx"}, "/tmp/report_2024.xlsx", true},
		{"pattern miss", Rule{Pattern: "report_*.xlsx"}, "/tmp/invoice.xlsx", false},
		{"both", Rule{Pattern: "invoice_*", Extensions: []string{".xlsx"}}, "/tmp/invoice_001.xlsx", true},
		{"no filters", Rule{}, "/tmp/x.xlsx", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesRule(tt.path, tt.rule); got != tt.want {
				t.Errorf("matchesRule(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsPackage(t *testing.T) {
	for path, want := range map[string]bool{
		"/tmp/book.xlsx":     true,
		"/tmp/macro.XLSM":    true,
		"/tmp/~$book.xlsx":   false,
		"/tmp/.book.xlsx":    false,
		"/tmp/readme.txt":    false,
		"/tmp/old.xls":       false,
		"/tmp/template.xltx": true,
	} {
		if got := IsPackage(path); got != want {
			t.Errorf("IsPackage(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestWatcherEvents(t *testing.T) {
	dir := t.TempDir()

	w, err := New(Config{
		Directories: []string{dir},
		Rules: []Rule{
			{ID: "verify-all", Extensions: []string{".xlsx"}, Action: ActionVerify, Enabled: true},
		},
		Debounce: 50,
	})
	if err != nil {
		t.Fatal(err)
	}

	handlerCalled := make(chan string, 4)
	w.Handler = func(ctx context.Context, path string, rule Rule) error {
		handlerCalled <- path
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Give the watcher time to start
	time.Sleep(100 * time.Millisecond)

	testFile := filepath.Join(dir, "book.xlsx")
	os.WriteFile(testFile, []byte("test"), 0644)

	select {
	case path := <-handlerCalled:
		if path != testFile {
			t.Errorf("expected %q, got %q", testFile, path)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for handler call")
	}

	// The event is recorded after the handler returns.
	time.Sleep(50 * time.Millisecond)
	events := w.GetEvents()
	if len(events) == 0 || events[0].Status != "processed" || events[0].RuleID != "verify-all" {
		t.Errorf("unexpected events %+v", events)
	}
	if !w.GetStatus().Running {
		t.Error("expected running=true")
	}
}

func TestWatcherSkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := New(Config{
		Directories: []string{dir},
		Rules:       []Rule{{ID: "r1", Action: ActionVerify, Enabled: true}},
		Debounce:    50,
	})
	if err != nil {
		t.Fatal(err)
	}

	called := make(chan struct{}, 4)
	w.Handler = func(ctx context.Context, path string, rule Rule) error {
		called <- struct{}{}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("test"), 0644)
	os.WriteFile(filepath.Join(dir, "~$book.xlsx"), []byte("lock"), 0644)
	time.Sleep(200 * time.Millisecond)

	if len(called) != 0 {
		t.Error("handler should not be called for non-package files")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()

	config := Config{
		Directories: []string{"/tmp/inbox"},
		Rules: []Rule{
			{ID: "r1", Extensions: []string{".xlsx"}, Action: ActionResave, OutDir: "/tmp/out", Enabled: true},
		},
		Recursive: true,
		Debounce:  500,
	}

	if err := SaveConfig(dir, config); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "watch.yaml"))
	if !strings.Contains(string(data), "out_dir: /tmp/out") {
		t.Errorf("unexpected YAML:\n%s", data)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Directories) != 1 || loaded.Directories[0] != "/tmp/inbox" {
		t.Errorf("directories mismatch: %v", loaded.Directories)
	}
	if !loaded.Recursive || loaded.Debounce != 500 {
		t.Errorf("unexpected config %+v", loaded)
	}
	if len(loaded.Rules) != 1 || loaded.Rules[0].OutDir != "/tmp/out" {
		t.Errorf("rules mismatch: %+v", loaded.Rules)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"no dirs", Config{}, "no directories"},
		{"resave without out_dir", Config{Directories: []string{"."}, Rules: []Rule{{ID: "a", Action: ActionResave}}}, "out_dir"},
		{"run without plan", Config{Directories: []string{"."}, Rules: []Rule{{ID: "a", Action: ActionRun}}}, "plan"},
		{"unknown action", Config{Directories: []string{"."}, Rules: []Rule{{ID: "a", Action: "mail"}}}, "unknown action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestGetStatusBeforeStart(t *testing.T) {
	w, _ := New(Config{
		Directories: []string{"/tmp/a", "/tmp/b"},
		Rules:       []Rule{{ID: "r1"}, {ID: "r2"}},
	})
	defer w.Close()

	status := w.GetStatus()
	if status.Running {
		t.Error("expected running=false before Start")
	}
	if len(status.Directories) != 2 || status.Rules != 2 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestEventJSON(t *testing.T) {
	evt := Event{Time: time.Now(), Path: "/tmp/book.xlsx", Operation: "CREATE", RuleID: "r1", Status: "processed"}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"ruleId":"r1"`) {
		t.Errorf("unexpected JSON %s", data)
	}
}

func TestDefaultDebounce(t *testing.T) {
	w, _ := New(Config{Debounce: 0})
	defer w.Close()

	if w.Config.Debounce != 500 {
		t.Errorf("expected default debounce 500, got %d", w.Config.Debounce)
	}
}

func writeBook(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "book.xlsx")
	err := xlsx.WriteFile(&xlsx.Workbook{Sheets: []xlsx.Sheet{{Name: "Data", Rows: [][]string{{"a", "1"}}}}}, path)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDispatcherVerifyAndResave(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	path := writeBook(t, in)

	d := &Dispatcher{}
	if err := d.Handle(context.Background(), path, Rule{Action: ActionVerify}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := d.Handle(context.Background(), path, Rule{Action: ActionResave, OutDir: out}); err != nil {
		t.Fatalf("resave failed: %v", err)
	}
	if _, err := Verify(filepath.Join(out, "book.xlsx")); err != nil {
		t.Errorf("resaved file does not verify: %v", err)
	}

	if _, err := Resave(path, in, workbook.SaveOptions{}); err == nil {
		t.Error("resave into the watched folder should fail")
	}

	bad := filepath.Join(in, "broken.xlsx")
	os.WriteFile(bad, []byte("not a zip"), 0644)
	if err := d.Handle(context.Background(), bad, Rule{Action: ActionVerify}); err == nil {
		t.Error("expected verify to fail for a broken file")
	}
}

func TestDispatcherRunsPlan(t *testing.T) {
	in := t.TempDir()
	path := writeBook(t, in)
	out := filepath.Join(t.TempDir(), "edited.xlsx")
	plan := filepath.Join(t.TempDir(), "plan.yaml")
	os.WriteFile(plan, []byte(`
name: stamp
steps:
  - id: copy
    action: clone
    sheet: Data
    title: Archive
  - id: save
    action: save
    output: `+out+`
`), 0644)

	d := &Dispatcher{}
	if err := d.Handle(context.Background(), path, Rule{Action: ActionRun, Plan: plan}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	wb, err := xlsx.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(wb.Names(), ","); got != "Data,Archive" {
		t.Errorf("unexpected sheets %s", got)
	}
}
