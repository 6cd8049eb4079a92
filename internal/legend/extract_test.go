package legend

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type scriptedAnswer struct {
	text string
	err  error
}

// scripted replays canned answers in call order and records every prompt.
type scripted struct {
	answers []scriptedAnswer
	calls   []string
}

func (s *scripted) Complete(_ context.Context, prompt string) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, prompt)
	if i >= len(s.answers) {
		return "", errors.New("no scripted answer left")
	}
	return s.answers[i].text, s.answers[i].err
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// twoChunkText splits into exactly two chunks under the default config.
func twoChunkText() string {
	return strings.Repeat("a", 4000)
}

func newTestExtractor(t *testing.T, c Completer) *Extractor {
	t.Helper()
	ex, err := NewExtractor(c, DefaultChunkConfig())
	if err != nil {
		t.Fatalf("NewExtractor() error = %v", err)
	}
	return ex
}

func TestExtract_CollectsUsableResultsFromAllChunks(t *testing.T) {
	fake := &scripted{answers: []scriptedAnswer{
		{text: "X=Excellent\nY=Very Good"},
		{text: "Y=Very Good"},
	}}
	ex := newTestExtractor(t, fake)

	out, err := ex.Extract(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Variant != VariantPrimary {
		t.Errorf("Variant = %d, want %d", out.Variant, VariantPrimary)
	}
	if out.Text != "X=Excellent\nY=Very Good" {
		t.Errorf("Text = %q, want duplicate line collapsed", out.Text)
	}
	if out.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", out.Chunks)
	}
	if len(fake.calls) != 2 {
		t.Errorf("made %d completion calls, want 2 (one per chunk, no fallback)", len(fake.calls))
	}
}

func TestExtract_FallsBackToSecondaryPrompt(t *testing.T) {
	fake := &scripted{answers: []scriptedAnswer{
		{text: "NO_LEGEND"},
		{text: "NO_LEGEND"},
		{text: "A = Excellent"},
		{text: "NO_LEGEND"},
	}}
	ex := newTestExtractor(t, fake)

	out, err := ex.Extract(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Variant != VariantSecondary {
		t.Errorf("Variant = %d, want %d", out.Variant, VariantSecondary)
	}
	if out.Text != "A = Excellent" {
		t.Errorf("Text = %q", out.Text)
	}
	if len(fake.calls) != 4 {
		t.Fatalf("made %d calls, want 4 (both variants over both chunks)", len(fake.calls))
	}
	for i, prompt := range fake.calls[:2] {
		if !strings.Contains(prompt, "GRADE LEGEND") {
			t.Errorf("call %d should use the primary prompt", i)
		}
	}
	for i, prompt := range fake.calls[2:] {
		if !strings.Contains(prompt, "GRADING SYSTEM or GRADE KEY") {
			t.Errorf("call %d should use the secondary prompt", i+2)
		}
	}
}

func TestExtract_NoLegendAnywhere(t *testing.T) {
	fake := &scripted{answers: []scriptedAnswer{
		{text: "NO_LEGEND"}, {text: "NO_LEGEND"},
		{text: "NO_LEGEND"}, {text: "NO_LEGEND"},
	}}
	ex := newTestExtractor(t, fake)

	out, err := ex.Extract(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Found() {
		t.Error("Found() = true, want false")
	}
	if out.Variant != VariantNone || out.Text != "" {
		t.Errorf("out = %+v, want empty outcome with variant 0", out)
	}
	if out.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", out.Chunks)
	}
}

func TestExtract_FailedCallCountsAsEmptyChunk(t *testing.T) {
	fake := &scripted{answers: []scriptedAnswer{
		{err: errors.New("connection refused")},
		{text: "W = Withdrawal"},
	}}
	ex := newTestExtractor(t, fake)

	out, err := ex.Extract(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Variant != VariantPrimary {
		t.Errorf("Variant = %d, want primary: another chunk succeeded", out.Variant)
	}
	if out.Text != "W = Withdrawal" {
		t.Errorf("Text = %q", out.Text)
	}
	if len(fake.calls) != 2 {
		t.Errorf("made %d calls, want 2: failed attempts are not retried", len(fake.calls))
	}
}

func TestExtract_AllCallsFailingYieldsEmptyOutcome(t *testing.T) {
	fake := &scripted{answers: []scriptedAnswer{
		{err: errors.New("boom")}, {err: errors.New("boom")},
		{err: errors.New("boom")}, {err: errors.New("boom")},
	}}
	ex := newTestExtractor(t, fake)

	out, err := ex.Extract(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil: call failures stay within the document", err)
	}
	if out.Found() {
		t.Error("Found() = true, want false")
	}
	if len(fake.calls) != 4 {
		t.Errorf("made %d calls, want 4 (both variants still attempted)", len(fake.calls))
	}
}

func TestExtract_CancellationAbortsDocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fake := completerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		cancel()
		return "", ctx.Err()
	})
	ex := newTestExtractor(t, fake)

	_, err := ex.Extract(ctx, twoChunkText())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("made %d calls after cancellation, want 1", calls)
	}
}

func TestExtract_WhitespaceOnlyResponseIsUnusable(t *testing.T) {
	fake := &scripted{answers: []scriptedAnswer{
		{text: "  \n\t "},
		{text: ""},
		{text: "P = Pass"},
		{text: ""},
	}}
	ex := newTestExtractor(t, fake)

	out, err := ex.Extract(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Variant != VariantSecondary {
		t.Errorf("Variant = %d, want secondary after blank primary answers", out.Variant)
	}
	if out.Text != "P = Pass" {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestExtract_SentinelInsideProseIsUnusable(t *testing.T) {
	fake := &scripted{answers: []scriptedAnswer{
		{text: "I looked carefully but NO_LEGEND was present."},
		{text: "NO_LEGEND"},
		{text: "NO_LEGEND"},
		{text: "NO_LEGEND"},
	}}
	ex := newTestExtractor(t, fake)

	out, err := ex.Extract(context.Background(), twoChunkText())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Found() {
		t.Errorf("Found() = true for sentinel-bearing answer, Text = %q", out.Text)
	}
}

func TestExtract_SingleChunkDocument(t *testing.T) {
	fake := &scripted{answers: []scriptedAnswer{
		{text: "AU = Audit"},
	}}
	ex := newTestExtractor(t, fake)

	out, err := ex.Extract(context.Background(), "short transcript")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.Chunks != 1 || out.Text != "AU = Audit" {
		t.Errorf("out = %+v", out)
	}
	if len(fake.calls) != 1 {
		t.Errorf("made %d calls, want 1", len(fake.calls))
	}
}

func TestNewExtractor_RejectsInvalidWindow(t *testing.T) {
	_, err := NewExtractor(&scripted{}, ChunkConfig{Size: 500, Overlap: 500})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
}

func TestExtractError_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &ExtractError{ChunkIndex: 3, Variant: VariantPrimary, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ExtractError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "chunk 3") {
		t.Errorf("Error() = %q, should name the chunk", err.Error())
	}
}
