package main

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	rendered := renderTable([]column{
		{title: "Name"},
		{title: "Count", align: alignRight},
	}, [][]string{
		{"first", "1"},
		{"second", "22"},
	})
	for _, want := range []string{"Name", "Count", "first", "22"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("table missing %q:\n%s", want, rendered)
		}
	}

	lines := strings.Split(rendered, "\n")
	if len(lines) < 5 {
		t.Fatalf("expected bordered header and rows:\n%s", rendered)
	}
}

func TestRenderTableEmptyColumns(t *testing.T) {
	if got := renderTable(nil, [][]string{{"x"}}); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
}
