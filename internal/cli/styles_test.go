package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintKeyValuesAligns(t *testing.T) {
	var buf bytes.Buffer

	PrintKeyValues(&buf, "", []KeyValue{
		{Key: "Rate", Value: "500 ms"},
		{Key: "Feedback", Value: "-6 dB"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), buf.String())
	}

	if !strings.Contains(lines[0], "Rate:") || !strings.Contains(lines[0], "500 ms") {
		t.Fatalf("unexpected first line %q", lines[0])
	}

	if !strings.Contains(lines[1], "Feedback:") || !strings.Contains(lines[1], "-6 dB") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}

func TestPrintTablePadsShortRows(t *testing.T) {
	var buf bytes.Buffer

	PrintTable(&buf, []string{"#", "sample"}, [][]string{{"1", "24000"}, {"2"}})

	out := buf.String()
	for _, s := range []string{"sample", "24000"} {
		if !strings.Contains(out, s) {
			t.Fatalf("table missing %q:\n%s", s, out)
		}
	}

	if n := strings.Count(out, "\n"); n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}
}
