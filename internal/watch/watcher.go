// Package watch monitors folders for spreadsheet packages and checks or
// rewrites each one as it lands.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Actions a rule can run.
const (
	ActionVerify = "verify" // check the package and report problems
	ActionResave = "resave" // read and write the package into OutDir
	ActionRun    = "run"    // run a pipeline plan with the file as input
)

// Rule defines a watch rule: which files to match and what action to take.
type Rule struct {
	ID         string   `yaml:"id" json:"id"`
	Pattern    string   `yaml:"pattern,omitempty" json:"pattern,omitempty"` // Glob on the base name (e.g. "report_*.xlsx")
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Action     string   `yaml:"action" json:"action"`
	Plan       string   `yaml:"plan,omitempty" json:"plan,omitempty"`
	OutDir     string   `yaml:"out_dir,omitempty" json:"outDir,omitempty"`
	Enabled    bool     `yaml:"enabled" json:"enabled"`
}

// Config holds the complete watcher configuration.
type Config struct {
	Directories []string `yaml:"directories" json:"directories"`
	Rules       []Rule   `yaml:"rules" json:"rules"`
	Recursive   bool     `yaml:"recursive" json:"recursive"`
	Debounce    int      `yaml:"debounce_ms" json:"debounceMs"` // Milliseconds to wait before processing
}

// Event represents a file event that was detected and processed.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	RuleID    string    `json:"ruleId,omitempty"`
	Action    string    `json:"action,omitempty"`
	Status    string    `json:"status"` // "processed", "error", "skipped"
	Error     string    `json:"error,omitempty"`
}

// EventHandler is called when a matching file event occurs.
type EventHandler func(ctx context.Context, path string, rule Rule) error

// Watcher monitors directories for file changes and triggers actions.
type Watcher struct {
	Config  Config
	Logger  *log.Logger
	Handler EventHandler

	mu       sync.Mutex
	events   []Event
	watcher  *fsnotify.Watcher
	debounce map[string]*time.Timer
	started  time.Time
}

// Status represents the current watcher status.
type Status struct {
	Running     bool     `json:"running"`
	Directories []string `json:"directories"`
	Rules       int      `json:"rules"`
	EventCount  int      `json:"eventCount"`
	StartedAt   string   `json:"startedAt,omitempty"`
}

// packageExtensions are the spreadsheet package extensions sheetkit reads.
var packageExtensions = map[string]bool{
	".xlsx": true, ".xlsm": true, ".xltx": true, ".xltm": true,
}

// New creates a new Watcher with the given configuration.
func New(config Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}

	if config.Debounce <= 0 {
		config.Debounce = 500
	}

	return &Watcher{
		Config:   config,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
		watcher:  fsw,
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the configured directories. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.Config.Directories {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}

		if w.Config.Recursive {
			if err := w.addRecursive(absDir); err != nil {
				return err
			}
		} else if err := w.watcher.Add(absDir); err != nil {
			return fmt.Errorf("could not watch %s: %w", absDir, err)
		}
	}

	w.mu.Lock()
	w.started = time.Now()
	w.mu.Unlock()
	w.Logger.Printf("Watching %d directory(ies) with %d rule(s)", len(w.Config.Directories), len(w.Config.Rules))

	for {
		select {
		case <-ctx.Done():
			w.Logger.Println("Stopping watcher")
			w.stopTimers()
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Printf("Error: %v", err)
		}
	}
}

// Close releases the underlying file system watcher without starting it.
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.watcher.Close()
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.debounce {
		t.Stop()
		delete(w.debounce, path)
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	path := event.Name
	if !IsPackage(path) {
		return
	}

	// Debounce: a package is written in several chunks.
	w.mu.Lock()
	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(time.Duration(w.Config.Debounce)*time.Millisecond, func() {
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()
		w.processFile(ctx, path, event.Op.String())
	})
	w.mu.Unlock()
}

// IsPackage reports whether path names a spreadsheet package that is not an
// editor lock or temporary file.
func IsPackage(path string) bool {
	if !packageExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	base := filepath.Base(path)
	return !strings.HasPrefix(base, "~$") && !strings.HasPrefix(base, ".")
}

func (w *Watcher) processFile(ctx context.Context, path string, operation string) {
	for _, rule := range w.Config.Rules {
		if !rule.Enabled || !matchesRule(path, rule) {
			continue
		}

		evt := Event{
			Time:      time.Now(),
			Path:      path,
			Operation: operation,
			RuleID:    rule.ID,
			Action:    rule.Action,
			Status:    "processed",
		}

		if w.Handler == nil {
			w.Logger.Printf("Matched %s (rule: %s, action: %s) [no handler]", path, rule.ID, rule.Action)
		} else if err := w.Handler(ctx, path, rule); err != nil {
			evt.Status = "error"
			evt.Error = err.Error()
			w.Logger.Printf("Error processing %s: %v", path, err)
		} else {
			w.Logger.Printf("Processed %s (rule: %s, action: %s)", path, rule.ID, rule.Action)
		}

		w.record(evt)
		return
	}

	w.record(Event{Time: time.Now(), Path: path, Operation: operation, Status: "skipped"})
}

func (w *Watcher) record(evt Event) {
	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

func matchesRule(path string, rule Rule) bool {
	ext := strings.ToLower(filepath.Ext(path))

	if len(rule.Extensions) > 0 {
		matched := false
		for _, e := range rule.Extensions {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			if strings.ToLower(e) == ext {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if rule.Pattern != "" {
		matched, _ := filepath.Match(rule.Pattern, filepath.Base(path))
		if !matched {
			return false
		}
	}

	return true
}

// GetStatus returns the current watcher status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Status{
		Running:     !w.started.IsZero(),
		Directories: w.Config.Directories,
		Rules:       len(w.Config.Rules),
		EventCount:  len(w.events),
	}
	if s.Running {
		s.StartedAt = w.started.Format(time.RFC3339)
	}
	return s
}

// GetEvents returns all recorded events.
func (w *Watcher) GetEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}

// Validate checks the rules for settings their action needs.
func (c Config) Validate() error {
	if len(c.Directories) == 0 {
		return fmt.Errorf("watch config has no directories")
	}
	for _, r := range c.Rules {
		switch r.Action {
		case ActionVerify:
		case ActionResave:
			if r.OutDir == "" {
				return fmt.Errorf("rule %q: resave needs out_dir", r.ID)
			}
		case ActionRun:
			if r.Plan == "" {
				return fmt.Errorf("rule %q: run needs a plan", r.ID)
			}
		default:
			return fmt.Errorf("rule %q: unknown action %q — use verify, resave or run", r.ID, r.Action)
		}
	}
	return nil
}

// SaveConfig writes the watcher config to watch.yaml in dir.
func SaveConfig(dir string, config Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "watch.yaml"), data, 0644)
}

// LoadConfig reads the watcher config from watch.yaml in dir.
func LoadConfig(dir string) (*Config, error) {
	return LoadConfigFile(filepath.Join(dir, "watch.yaml"))
}

// LoadConfigFile reads a watcher config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid watch config: %w", err)
	}
	return &config, nil
}

// DefaultConfigDir returns the default config directory for the watcher.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sheetkit")
}
