package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

func TestNewDisabled(t *testing.T) {
	if New("verify", 10, true).Enabled {
		t.Error("quiet bar should be disabled")
	}
	t.Setenv("SHEETKIT_NO_PROGRESS", "1")
	if New("verify", 10, false).Enabled {
		t.Error("expected bar to be disabled with SHEETKIT_NO_PROGRESS=1")
	}
}

func TestBarStep(t *testing.T) {
	bar := &Bar{Total: 3, Width: 30}
	bar.Step("a.xlsx", nil)
	bar.Step("b.xlsx", errors.New("broken"))
	bar.Step("c.xlsx", nil)
	bar.Step("d.xlsx", nil)
	if bar.Current != 3 {
		t.Errorf("expected current capped at 3, got %d", bar.Current)
	}
	if bar.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", bar.Failed)
	}
}

func TestBarPct(t *testing.T) {
	tests := []struct {
		total, current int
		want           float64
	}{
		{10, 0, 0},
		{10, 5, 50},
		{10, 10, 100},
		{0, 0, 0},
	}
	for _, tt := range tests {
		bar := &Bar{Total: tt.total, Current: tt.current, Width: 30}
		if got := bar.Pct(); got != tt.want {
			t.Errorf("Pct() with %d/%d = %.1f, want %.1f", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestBarRender(t *testing.T) {
	var buf bytes.Buffer
	bar := &Bar{Total: 2, Width: 10, Label: "verify", Enabled: true, out: &buf}
	bar.Step("a.xlsx", nil)
	if !strings.Contains(buf.String(), "verify [=====     ] 1/2  a.xlsx") {
		t.Errorf("unexpected render %q", buf.String())
	}

	buf.Reset()
	bar.Step("b.xlsx", errors.New("broken"))
	bar.Finish("2 packages, 1 failed")
	if !strings.HasSuffix(buf.String(), "✗ 2 packages, 1 failed\n") {
		t.Errorf("unexpected summary %q", buf.String())
	}
}

func TestDisabledBarDoesNotWrite(t *testing.T) {
	var buf bytes.Buffer
	bar := &Bar{Total: 10, Width: 30, out: &buf}
	bar.Step("a.xlsx", nil)
	bar.Finish("done")
	if buf.Len() > 0 {
		t.Errorf("disabled bar wrote %q", buf.String())
	}
}
