package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/pario-ai/faqbot/pkg/selector"
)

type testEnv struct {
	dir     string
	cfgPath string
	csvPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:     dir,
		cfgPath: filepath.Join(dir, "faqbot.yaml"),
		csvPath: filepath.Join(dir, "faq.csv"),
	}
	cfg := "db_path: " + filepath.Join(dir, "faqbot.db") + "\n" +
		"store:\n  driver: csv\n  path: " + env.csvPath + "\n" +
		"generator:\n  enabled: false\n" +
		"audit:\n  enabled: true\n"
	if err := os.WriteFile(env.cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", e.cfgPath, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestAddThenAskHitsCache(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "faq", "add", "-q", "¿Cuál es el horario de la biblioteca?", "-a", "De 8am a 4pm.")
	if !strings.Contains(out, "added") {
		t.Errorf("unexpected add output: %q", out)
	}

	out = env.mustRun(t, "ask", "¿Cuál es el horario de la biblioteca?")
	if !strings.Contains(out, "De 8am a 4pm.") || !strings.Contains(out, "KNN") {
		t.Errorf("expected cache answer, got %q", out)
	}

	out = env.mustRun(t, "ask", "¿Dónde compro boletos de avión?")
	if !strings.Contains(out, selector.NoInfoText) {
		t.Errorf("expected no-info reply, got %q", out)
	}

	out = env.mustRun(t, "audit", "search", "--source", "cache")
	if !strings.Contains(out, "cache") || strings.Contains(out, "No audit entries") {
		t.Errorf("expected a cache decision in the audit log, got %q", out)
	}

	out = env.mustRun(t, "sessions", "--client", "cli")
	if strings.Contains(out, "No sessions found") {
		t.Errorf("expected a CLI session, got %q", out)
	}
}

func TestFAQInspection(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "faq", "add", "-q", "¿Horario de la biblioteca?", "-a", "8am-4pm")
	env.mustRun(t, "faq", "add", "-q", "¿Horario de la biblioteca?", "-a", "9am-5pm")

	out := env.mustRun(t, "faq", "list")
	if strings.Count(out, "¿Horario de la biblioteca?") != 2 {
		t.Errorf("unexpected list output: %q", out)
	}

	out = env.mustRun(t, "faq", "check")
	if !strings.Contains(out, "Records:    2") || !strings.Contains(out, "Duplicates: 1") {
		t.Errorf("unexpected check output: %q", out)
	}

	out = env.mustRun(t, "cache", "query", "horario biblioteca", "-k", "1")
	if !strings.Contains(out, "yes") {
		t.Errorf("expected a hit, got %q", out)
	}

	out = env.mustRun(t, "cache", "stats")
	if !strings.Contains(out, "Rows:       2") {
		t.Errorf("unexpected stats output: %q", out)
	}
}

func TestImportExport(t *testing.T) {
	env := newTestEnv(t)
	src := filepath.Join(env.dir, "import.csv")
	if err := os.WriteFile(src, []byte("Pregunta,Respuesta\n¿Becas?,En servicios escolares.\n¿Inscripción?,En agosto.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun(t, "faq", "import", src)
	if !strings.Contains(out, "Imported 2") {
		t.Errorf("unexpected import output: %q", out)
	}

	dst := filepath.Join(env.dir, "export.csv")
	env.mustRun(t, "faq", "export", dst)
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	want := "Pregunta,Respuesta\n¿Becas?,En servicios escolares.\n¿Inscripción?,En agosto.\n"
	if string(data) != want {
		t.Errorf("export = %q, want %q", data, want)
	}

	if _, err := env.run(t, "", "faq", "export", dst); err == nil {
		t.Error("expected export onto an existing file to fail")
	}
}

func TestInteractiveAsk(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "faq", "add", "-q", "¿Cuál es el horario de la biblioteca?", "-a", "De 8am a 4pm.")

	out, err := env.run(t, "¿Cuál es el horario de la biblioteca?\n/reset\n/salir\n", "ask")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "De 8am a 4pm.") || !strings.Contains(out, "reiniciada") {
		t.Errorf("unexpected interactive output: %q", out)
	}
}

func TestBudgetDisabled(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "budget", "status")
	if !strings.Contains(out, "disabled") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestMissingConfigFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"faq", "list", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	if err := root.Execute(); err == nil {
		t.Error("expected an error for an explicit missing config file")
	}
}

func TestHangupReloadsCache(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "faq", "add", "-q", "¿Horario de la biblioteca?", "-a", "8am-4pm")

	opts := &rootOptions{configPath: env.cfgPath, logLevel: "error"}
	cfg, logger, err := opts.load()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	a.reloadOnHangup(ctx, logger)

	env.mustRun(t, "faq", "add", "-q", "¿Dónde está la cafetería?", "-a", "Edificio B.")
	if rows := a.cache.Stats().Rows; rows != 1 {
		t.Fatalf("expected stale cache with 1 row, got %d", rows)
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for a.cache.Stats().Rows != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("cache not reloaded, rows=%d", a.cache.Stats().Rows)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
