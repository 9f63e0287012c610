package main

import (
	"strings"
	"testing"

	"github.com/ucifleet/ucifleet/pkg/fleet"
	"github.com/ucifleet/ucifleet/pkg/uci"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		got := confirm("proceed?", strings.NewReader(tt.input))
		if got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRemovalDirective(t *testing.T) {
	defer func() { app.apply.removeUnmanaged = false }()

	app.apply.removeUnmanaged = false
	if d := removalDirective(); d.RemoveAll {
		t.Errorf("removalDirective() with flag unset = %+v, want RemoveAll=false", d)
	}

	app.apply.removeUnmanaged = true
	if d := removalDirective(); !d.RemoveAll {
		t.Errorf("removalDirective() with flag set = %+v, want RemoveAll=true", d)
	}
}

func TestSortedNames(t *testing.T) {
	devices := map[string]fleet.Device{
		"zz-ap": {},
		"aa-ap": {},
		"mm-ap": {},
	}
	got := sortedNames(devices)
	want := []string{"aa-ap", "mm-ap", "zz-ap"}
	if len(got) != len(want) {
		t.Fatalf("sortedNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sortedNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDashInt(t *testing.T) {
	tests := []struct {
		input int
		want  string
	}{
		{0, "-"},
		{-1, "-"},
		{5, "5"},
		{100, "100"},
	}
	for _, tt := range tests {
		if got := dashInt(tt.input); got != tt.want {
			t.Errorf("dashInt(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNoColorDisablesPaint(t *testing.T) {
	defer func() { app.apply.noColor = false }()

	app.apply.noColor = true
	if got := green("x"); got != "x" {
		t.Errorf("green(%q) with --no-color = %q, want unmodified", "x", got)
	}
	if got := red("x"); got != "x" {
		t.Errorf("red(%q) with --no-color = %q, want unmodified", "x", got)
	}

	app.apply.noColor = false
	if got := green("x"); got == "x" {
		t.Errorf("green(%q) without --no-color should add ANSI codes", "x")
	}
}
