package translator

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ximaera/fb2lingo/internal/apperrors"
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/llm"
)

type sequenceBackend struct {
	mu        sync.Mutex
	calls     int
	prompts   []string
	responses []sequenceResponse
}

type sequenceResponse struct {
	text string
	err  error
}

func (b *sequenceBackend) Complete(ctx context.Context, model, prompt string) (*llm.Completion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.prompts = append(b.prompts, prompt)
	idx := b.calls - 1
	if idx >= len(b.responses) {
		idx = len(b.responses) - 1
	}
	r := b.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Completion{Text: r.text, Usage: llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}, nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestTranslator(t *testing.T, backend llm.Backend) (*Translator, *sleepRecorder) {
	t.Helper()
	src, _ := language.GetLanguage("ru")
	tgt, _ := language.GetLanguage("el")
	tr, err := NewTranslator(backend, "gpt-4o", src, tgt)
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	rec := &sleepRecorder{}
	policy := DefaultRetryPolicy()
	policy.Sleep = rec.sleep
	tr.SetRetryPolicy(policy)
	return tr, rec
}

func TestTranslateBatch_Success(t *testing.T) {
	backend := &sequenceBackend{responses: []sequenceResponse{{text: "1. Α\n2. Β\n3. Γ"}}}
	tr, rec := newTestTranslator(t, backend)

	got, err := tr.TranslateBatch(context.Background(), []string{"А", "Б", "В"})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Α", "Β", "Γ"}) {
		t.Fatalf("unexpected translations: %q", got)
	}
	if backend.calls != 1 || len(rec.sleeps) != 0 {
		t.Fatalf("expected a single call without sleeps, got %d calls, %v", backend.calls, rec.sleeps)
	}
	if u := tr.GetUsage(); u.TotalTokens != 15 {
		t.Fatalf("usage not recorded: %+v", u)
	}
}

func TestTranslateBatch_TransientRetries(t *testing.T) {
	backend := &sequenceBackend{responses: []sequenceResponse{
		{err: apperrors.Transient(errors.New("temporary"))},
		{err: errors.New("connection reset")},
		{text: "1. ok"},
	}}
	tr, rec := newTestTranslator(t, backend)

	got, err := tr.TranslateBatch(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"ok"}) {
		t.Fatalf("unexpected translations: %q", got)
	}
	if backend.calls != 3 {
		t.Fatalf("expected 3 attempts for transient errors, got %d", backend.calls)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if !reflect.DeepEqual(rec.sleeps, want) {
		t.Fatalf("backoff schedule = %v, want %v", rec.sleeps, want)
	}
}

func TestTranslateBatch_TransportExhausted(t *testing.T) {
	sentinel := errors.New("network down")
	backend := &sequenceBackend{responses: []sequenceResponse{{err: apperrors.Transient(sentinel)}}}
	tr, rec := newTestTranslator(t, backend)

	_, err := tr.TranslateBatch(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if backend.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", backend.calls)
	}
	if len(rec.sleeps) != 2 {
		t.Fatalf("expected 2 sleeps, got %v", rec.sleeps)
	}
}

func TestTranslateBatch_PermanentErrorNotRetried(t *testing.T) {
	backend := &sequenceBackend{responses: []sequenceResponse{{err: apperrors.Auth(errors.New("bad key"))}}}
	tr, _ := newTestTranslator(t, backend)

	_, err := tr.TranslateBatch(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected auth error")
	}
	if kind, _ := apperrors.KindOf(err); kind != apperrors.KindAuth {
		t.Fatalf("expected auth kind, got %q", kind)
	}
	if backend.calls != 1 {
		t.Fatalf("expected 1 attempt for auth error, got %d", backend.calls)
	}
}

func TestTranslateBatch_MismatchRetriedThenAccepted(t *testing.T) {
	backend := &sequenceBackend{responses: []sequenceResponse{
		{text: "1. only one"},
		{text: "1. Α\n2. Β"},
	}}
	tr, rec := newTestTranslator(t, backend)

	got, err := tr.TranslateBatch(context.Background(), []string{"А", "Б"})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Α", "Β"}) {
		t.Fatalf("unexpected translations: %q", got)
	}
	if backend.calls != 2 || len(rec.sleeps) != 1 || rec.sleeps[0] != 5*time.Second {
		t.Fatalf("expected one retry after 5s, got %d calls, sleeps %v", backend.calls, rec.sleeps)
	}
	if u := tr.GetUsage(); u.TotalTokens != 30 {
		t.Fatalf("usage of both attempts should be counted, got %+v", u)
	}
}

func TestTranslateBatch_MismatchRecoveredOnFinalAttempt(t *testing.T) {
	backend := &sequenceBackend{responses: []sequenceResponse{{text: "1. A"}}}
	tr, _ := newTestTranslator(t, backend)

	got, err := tr.TranslateBatch(context.Background(), []string{"x", "y", "z"})
	if err != nil {
		t.Fatalf("mismatch must not be fatal: %v", err)
	}
	want := []string{"A", MismatchWarning, ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if backend.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", backend.calls)
	}
}

func TestTranslateBatch_OversizedReturnedOnFinalAttempt(t *testing.T) {
	backend := &sequenceBackend{responses: []sequenceResponse{{text: "1. A\n2. B\n3. C"}}}
	tr, _ := newTestTranslator(t, backend)

	got, err := tr.TranslateBatch(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("oversized result should be returned untruncated, got %q", got)
	}
}

func TestTranslateBatch_CanceledDuringBackoff(t *testing.T) {
	backend := &sequenceBackend{responses: []sequenceResponse{{err: apperrors.Transient(errors.New("temporary"))}}}
	src, _ := language.GetLanguage("ru")
	tgt, _ := language.GetLanguage("el")
	tr, err := NewTranslator(backend, "gpt-4o", src, tgt)
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	tr.SetRetryPolicy(RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(time.Hour),
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return sleepContext(ctx, d)
		},
	})

	_, err = tr.TranslateBatch(ctx, []string{"hello"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if backend.calls != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", backend.calls)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Russian", "Greek", []string{"Привет,\n  мир", "Пока"}, map[string]string{"Пьер": "Πιερ"})
	for _, want := range []string{
		"from Russian to Greek",
		"ONLY the translations",
		"1. Привет, мир\n",
		"2. Пока\n",
		"- Пьер -> Πιερ",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestNewTranslator_Validation(t *testing.T) {
	src, _ := language.GetLanguage("ru")
	tgt, _ := language.GetLanguage("el")
	if _, err := NewTranslator(nil, "gpt-4o", src, tgt); err == nil {
		t.Fatalf("expected error for nil backend")
	}
	if _, err := NewTranslator(&llm.MockBackend{}, " ", src, tgt); err == nil {
		t.Fatalf("expected error for empty model")
	}
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(5 * time.Second)
	for attempt, want := range map[int]time.Duration{1: 5 * time.Second, 2: 10 * time.Second, 3: 15 * time.Second} {
		if got := b(attempt); got != want {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, want)
		}
	}
}
