package ui

import (
	"errors"
	"testing"
)

func TestRender_NoColor(t *testing.T) {
	DisableColor()

	tests := []struct {
		render func(string) string
		in     string
	}{
		{RenderAccent, "sync"},
		{RenderPass, "✓"},
		{RenderWarn, "⚠"},
		{RenderFail, "✗"},
		{RenderMuted, "(none)"},
	}
	for _, tt := range tests {
		if got := tt.render(tt.in); got != tt.in {
			t.Errorf("render(%q) = %q, want plain text", tt.in, got)
		}
	}
}

func TestConfirm_AssumeYes(t *testing.T) {
	ok, err := Confirm("Remove?", "", true)
	if !ok || err != nil {
		t.Errorf("Confirm() = %v, %v", ok, err)
	}
}

func TestConfirm_NotInteractive(t *testing.T) {
	if IsInteractive() {
		t.Skip("running in a terminal")
	}
	ok, err := Confirm("Remove?", "", false)
	if ok || !errors.Is(err, ErrNotInteractive) {
		t.Errorf("Confirm() = %v, %v, want ErrNotInteractive", ok, err)
	}
}
