package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pario-ai/faqbot/pkg/audit"
	"github.com/pario-ai/faqbot/pkg/cache/semantic"
	"github.com/pario-ai/faqbot/pkg/feedback"
	"github.com/pario-ai/faqbot/pkg/history"
	"github.com/pario-ai/faqbot/pkg/models"
	"github.com/pario-ai/faqbot/pkg/selector"
	"github.com/pario-ai/faqbot/pkg/store"
)

type fakeGenerator struct {
	answers []string
	err     error
	calls   int
	history []string
}

func (f *fakeGenerator) Generate(_ context.Context, _, history string) (string, error) {
	f.history = append(f.history, history)
	if f.err != nil {
		return "", f.err
	}
	out := f.answers[f.calls%len(f.answers)]
	f.calls++
	return out, nil
}

type testEnv struct {
	svc   *Service
	store *store.CSVStore
	cache *semantic.Cache
	gen   *fakeGenerator
	audit *audit.Logger
}

func newTestEnv(t *testing.T, gen *fakeGenerator) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	s := store.NewCSV(filepath.Join(dir, "faq.csv"))
	if err := s.Append(ctx, models.FAQRecord{Question: "¿Horario de atención?", Answer: "8am-4pm"}); err != nil {
		t.Fatal(err)
	}
	c, err := semantic.Open(ctx, s)
	if err != nil {
		t.Fatal(err)
	}

	sel, err := selector.New(selector.Config{
		CacheEnabled:      true,
		GeneratorEnabled:  true,
		DistanceThreshold: 0.3,
	}, c, gen)
	if err != nil {
		t.Fatal(err)
	}

	h, err := history.New(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })

	a, err := audit.New(models.AuditConfig{Enabled: true, DBPath: filepath.Join(dir, "audit.db"), IncludeAnswers: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })

	svc := New(Options{
		Selector: sel,
		History:  h,
		Writer:   feedback.New(s, nil),
		Cache:    c,
		Loader:   s,
		Audit:    a,
		MaxTurns: 5,
	})
	return &testEnv{svc: svc, store: s, cache: c, gen: gen, audit: a}
}

func TestCacheAnswerIsNotWrittenBack(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"unused"}})
	ctx := context.Background()

	resp, err := env.svc.Handle(ctx, Request{Message: "¿Cuál es el horario de atención?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Decision.Source != models.SourceCache || resp.Reply != "8am-4pm" {
		t.Fatalf("expected cache answer, got %+v", resp)
	}
	if resp.Outcome != "" {
		t.Errorf("cache answers must not be written back, got %s", resp.Outcome)
	}
	if n, _ := env.store.Count(ctx); n != 1 {
		t.Errorf("expected store unchanged, got %d records", n)
	}
}

func TestGeneratedAnswerIsAppendedAndCached(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"Desde el portal de alumnos."}})
	ctx := context.Background()

	resp, err := env.svc.Handle(ctx, Request{Message: "¿Cómo cambio mi contraseña?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Decision.Source != models.SourceGenerator {
		t.Fatalf("expected generator, got %+v", resp.Decision)
	}
	if resp.Outcome != models.OutcomeAppended {
		t.Errorf("expected appended, got %s", resp.Outcome)
	}
	if n, _ := env.store.Count(ctx); n != 2 {
		t.Errorf("expected 2 records, got %d", n)
	}

	resp, err = env.svc.Handle(ctx, Request{SessionID: resp.SessionID, Message: "¿Cómo cambio mi contraseña?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Decision.Source != models.SourceCache || resp.Reply != "Desde el portal de alumnos." {
		t.Errorf("expected cached generated answer, got %+v", resp.Decision)
	}
	if env.gen.calls != 1 {
		t.Errorf("expected 1 generator call, got %d", env.gen.calls)
	}
}

func TestRegenerateReplaces(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"primera", "segunda"}})
	ctx := context.Background()

	first, err := env.svc.Handle(ctx, Request{Message: "¿Cómo cambio mi contraseña?"})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := env.svc.Handle(ctx, Request{SessionID: first.SessionID, Mode: models.ModeRegenerate})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reply != "segunda" || resp.Decision.Source != models.SourceGenerator {
		t.Fatalf("expected regenerated answer, got %+v", resp)
	}
	if resp.Outcome != models.OutcomeReplaced {
		t.Errorf("expected replaced, got %s", resp.Outcome)
	}

	records, _ := env.store.Load(ctx)
	if len(records) != 2 || records[1].Answer != "segunda" {
		t.Errorf("unexpected store: %+v", records)
	}

	m, _ := env.cache.Query("¿Cómo cambio mi contraseña?")
	if m.Answer != "segunda" {
		t.Errorf("cache not rebuilt with replaced answer, got %q", m.Answer)
	}

	if got := env.gen.history[1]; got != "Usuario: ¿Cómo cambio mi contraseña?\n" {
		t.Errorf("regenerate must drop the previous answer from history, got %q", got)
	}
}

func TestRegenerateOfCachedQuestionForcesGenerator(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"9am-5pm"}})
	ctx := context.Background()

	first, _ := env.svc.Handle(ctx, Request{Message: "¿Horario de atención?"})
	if first.Decision.Source != models.SourceCache {
		t.Fatalf("expected cache first, got %+v", first.Decision)
	}

	resp, err := env.svc.Handle(ctx, Request{SessionID: first.SessionID, Mode: models.ModeRegenerate})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Decision.Source != models.SourceGenerator {
		t.Fatalf("expected generator, got %+v", resp.Decision)
	}

	m, _ := env.cache.Query("¿Horario de atención?")
	if m.Answer != "9am-5pm" {
		t.Errorf("expected replaced answer served, got %q", m.Answer)
	}
	if n, _ := env.store.Count(ctx); n != 1 {
		t.Errorf("expected replace in place, got %d records", n)
	}
}

func TestGeneratorErrorIsNotWrittenBack(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{err: errors.New("down")})
	ctx := context.Background()

	resp, err := env.svc.Handle(ctx, Request{Message: "¿Cómo cambio mi contraseña?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Decision.Source != models.SourceError || resp.Reply != selector.ApologyText {
		t.Fatalf("expected apology, got %+v", resp)
	}
	if n, _ := env.store.Count(ctx); n != 1 {
		t.Errorf("expected store unchanged, got %d", n)
	}
}

func TestRequestErrors(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"x"}})
	ctx := context.Background()

	if _, err := env.svc.Handle(ctx, Request{Message: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := env.svc.Handle(ctx, Request{Mode: models.ModeRegenerate}); !errors.Is(err, ErrNoPreviousQuestion) {
		t.Errorf("expected ErrNoPreviousQuestion, got %v", err)
	}
	if _, err := env.svc.Handle(ctx, Request{Message: "hola", Mode: "shout"}); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}

func TestHistoryIsPassedToGenerator(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"uno", "dos"}})
	ctx := context.Background()

	first, _ := env.svc.Handle(ctx, Request{Message: "¿Cómo cambio mi contraseña?"})
	_, _ = env.svc.Handle(ctx, Request{SessionID: first.SessionID, Message: "¿Y mi correo institucional?"})

	want := "Usuario: ¿Cómo cambio mi contraseña?\nAsistente: uno\n"
	if got := env.gen.history[1]; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDecisionsAreAudited(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"gen"}})
	ctx := context.Background()

	resp, _ := env.svc.Handle(ctx, Request{Message: "¿Cómo cambio mi contraseña?"})

	entries, err := env.audit.Query(ctx, models.AuditQueryOpts{SessionID: resp.SessionID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Source != models.SourceGenerator || entries[0].Outcome != string(models.OutcomeAppended) {
		t.Errorf("unexpected audit entry: %+v", entries[0])
	}
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"x"}})
	ctx := context.Background()

	resp, _ := env.svc.Handle(ctx, Request{Message: "¿Horario de atención?"})
	if err := env.svc.Reset(ctx, resp.SessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Handle(ctx, Request{SessionID: resp.SessionID, Mode: models.ModeRegenerate}); !errors.Is(err, ErrNoPreviousQuestion) {
		t.Errorf("expected ErrNoPreviousQuestion after reset, got %v", err)
	}
}

func TestReloadCachePicksUpExternalWrites(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answers: []string{"unused"}})
	ctx := context.Background()

	other := store.NewCSV(env.store.Path())
	if err := other.Append(ctx, models.FAQRecord{Question: "¿Dónde está la cafetería?", Answer: "Edificio B."}); err != nil {
		t.Fatal(err)
	}
	if rows := env.cache.Stats().Rows; rows != 1 {
		t.Fatalf("expected stale cache with 1 row, got %d", rows)
	}

	if err := env.svc.ReloadCache(ctx); err != nil {
		t.Fatal(err)
	}
	if rows := env.cache.Stats().Rows; rows != 2 {
		t.Errorf("expected 2 rows after reload, got %d", rows)
	}

	resp, err := env.svc.Handle(ctx, Request{Message: "¿Dónde está la cafetería?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Decision.Source != models.SourceCache || resp.Reply != "Edificio B." {
		t.Errorf("expected reloaded cache answer, got %+v", resp.Decision)
	}
}

func TestReloadCacheDisabled(t *testing.T) {
	svc := New(Options{})
	if err := svc.ReloadCache(context.Background()); !errors.Is(err, ErrReloadDisabled) {
		t.Errorf("expected ErrReloadDisabled, got %v", err)
	}
}
