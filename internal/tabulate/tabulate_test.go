package tabulate

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestParseRows_KeepsValidEntries(t *testing.T) {
	response := "A,Excellent\nB,Good\nWP,Withdrew Passing\nAU,Audit"
	rows := ParseRows(response)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4: %+v", len(rows), rows)
	}
	if rows[0] != (Row{Code: "A", Description: "Excellent"}) {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[2] != (Row{Code: "WP", Description: "Withdrew Passing"}) {
		t.Errorf("rows[2] = %+v", rows[2])
	}
}

func TestParseRows_DropsInvalidLines(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"no comma", "A Excellent"},
		{"numeric code", "4.0,Grade points"},
		{"symbol code", "A+,Excellent plus"},
		{"code too long", "PASSED,Completed the course"},
		{"empty code", ",Description only"},
		{"blank line", "   "},
		{"markdown fence", "```csv"},
		{"header chatter", "Here is the CSV you asked for:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rows := ParseRows(tc.response); len(rows) != 0 {
				t.Errorf("ParseRows(%q) = %+v, want none", tc.response, rows)
			}
		})
	}
}

func TestParseRows_SplitsOnFirstCommaOnly(t *testing.T) {
	rows := ParseRows("I,Incomplete, pending final exam")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Description != "Incomplete, pending final exam" {
		t.Errorf("Description = %q, commas after the first belong to it", rows[0].Description)
	}
}

func TestParseRows_AllowsEmptyDescription(t *testing.T) {
	rows := ParseRows("W,")
	if len(rows) != 1 || rows[0].Code != "W" || rows[0].Description != "" {
		t.Errorf("rows = %+v, want W with empty description", rows)
	}
}

func TestParseRows_SalvagesRowsFromChatter(t *testing.T) {
	response := "Sure! Here is the result:\n\nA,Excellent\nnot a row\nF,Failure\n```"
	rows := ParseRows(response)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}
	if rows[0].Code != "A" || rows[1].Code != "F" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestFormat_OneLinePerRow(t *testing.T) {
	rows := []Row{{Code: "A", Description: "Excellent"}, {Code: "W", Description: "Withdrawal"}}
	if got := Format(rows); got != "A,Excellent\nW,Withdrawal" {
		t.Errorf("Format() = %q", got)
	}
	if got := Format(nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
}

func TestTabulate_RoundTrip(t *testing.T) {
	var gotPrompt string
	fake := completerFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "A,Excellent\n9,bad\nB,Good", nil
	})

	rows, err := New(fake).Tabulate(context.Background(), "A = Excellent\nB = Good")
	if err != nil {
		t.Fatalf("Tabulate() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 after validation", len(rows))
	}
	if !strings.Contains(gotPrompt, "Convert to CSV: CODE,DESCRIPTION") {
		t.Error("prompt should carry the conversion instructions")
	}
	if !strings.Contains(gotPrompt, "A = Excellent") {
		t.Error("prompt should embed the legend text")
	}
}

func TestTabulate_CompletionFailure(t *testing.T) {
	fake := completerFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("connection refused")
	})
	_, err := New(fake).Tabulate(context.Background(), "A = Excellent")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestTabulate_CancellationWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := completerFunc(func(ctx context.Context, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	_, err := New(fake).Tabulate(ctx, "A = Excellent")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
