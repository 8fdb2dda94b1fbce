package logging

import "testing"

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		if logger := New(level); logger == nil || logger.Logger == nil {
			t.Fatalf("New(%q) returned nil logger", level)
		}
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}

func TestComponent(t *testing.T) {
	base := Default()
	child := base.Component("oauth")
	if child == nil || child.Logger == nil {
		t.Fatal("Component returned nil")
	}
	if child == base {
		t.Fatal("Component should return a new logger")
	}
}
