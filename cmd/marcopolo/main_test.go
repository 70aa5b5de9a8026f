package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/marcopolo/internal/airlock"
	"github.com/fyrsmithlabs/marcopolo/internal/artifact"
	"github.com/fyrsmithlabs/marcopolo/internal/pipeline"
	"github.com/fyrsmithlabs/marcopolo/internal/verify"
)

const (
	groceryMarco = "- buy milk\n- fix bug in parser\n- write docs\n"
	groceryPolo  = "## Thread 1: Errands\n" +
		"SRC: fixed parser bug [ref]\n" +
		"SRC: wrote the docs [ref]\n" +
		"OPEN: what about groceries?\n"
)

type testEnv struct {
	dir    string
	out    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		out:    filepath.Join(dir, "out"),
		config: filepath.Join(dir, "config.yaml"),
	}
	require.NoError(t, os.WriteFile(env.config, []byte("logging:\n  level: error\n"), 0o600))
	return env
}

func (e *testEnv) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (e *testEnv) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return e.runContext(context.Background(), args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", e.config, "--out", e.out}, args...)
	code := execute(ctx, full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (e *testEnv) readReport(t *testing.T) verify.Report {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.out, artifact.ReportJSONFile))
	require.NoError(t, err)
	var report verify.Report
	require.NoError(t, json.Unmarshal(data, &report))
	return report
}

func TestVerify_WritesArtifacts(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", groceryMarco)
	polo := env.file(t, "polo.md", groceryPolo)

	code, stdout, stderr := env.run(t, "verify", marco, polo)
	require.Equal(t, 0, code, stderr)

	for _, name := range []string{
		artifact.SpansFile, artifact.UnitsFile, artifact.EdgesFile,
		artifact.ReportJSONFile, artifact.ReportMDFile,
	} {
		assert.FileExists(t, filepath.Join(env.out, name))
	}
	assert.NoFileExists(t, filepath.Join(env.out, artifact.DraftFile))

	report := env.readReport(t)
	assert.InDelta(t, 2.0/3.0, report.Coverage, 1e-9)
	assert.Equal(t, "medium", report.Label)
	assert.Equal(t, []string{"m:0001"}, report.UnreferencedSpans)

	spans, err := os.ReadFile(filepath.Join(env.out, artifact.SpansFile))
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(spans, []byte("\n")))

	assert.Contains(t, stdout, "marcopolo verify")
	assert.Contains(t, stdout, "0.667 (2/3)")
	assert.Contains(t, stdout, "0.733")
	assert.Contains(t, stdout, "medium")
}

func TestVerify_Quiet(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", groceryMarco)
	polo := env.file(t, "polo.md", groceryPolo)

	code, stdout, _ := env.run(t, "--quiet", "verify", marco, polo)
	require.Equal(t, 0, code)
	assert.Empty(t, stdout)
}

func TestVerify_AdmissionFailure(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", "SRC: café bug\n")
	polo := env.file(t, "polo.md", groceryPolo)

	code, stdout, stderr := env.run(t, "verify", marco, polo)
	assert.Equal(t, exitAdmission, code)
	assert.Contains(t, stderr, "admission failed")
	assert.Contains(t, stdout, "U+00E9 at 8")

	data, err := os.ReadFile(filepath.Join(env.out, artifact.AirlockFile))
	require.NoError(t, err)
	var reports map[string]airlock.Report
	require.NoError(t, json.Unmarshal(data, &reports))
	require.Contains(t, reports, "marco")
	require.Contains(t, reports, "polo")
	assert.False(t, reports["marco"].ASCIIOK)
	assert.True(t, reports["polo"].ASCIIOK)
	require.Len(t, reports["marco"].NonASCII, 1)
	assert.Equal(t, 8, reports["marco"].NonASCII[0].Pos)

	assert.NoFileExists(t, filepath.Join(env.out, artifact.ReportJSONFile))
}

func TestVerify_RepairCommonPunct(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", "- fix the “parser” bug\n")
	polo := env.file(t, "polo.md", "SRC: fixed parser bug\n")

	code, _, _ := env.run(t, "verify", marco, polo)
	assert.Equal(t, exitAdmission, code)

	code, _, stderr := env.run(t, "--repair-common-punct", "verify", marco, polo)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 1.0, env.readReport(t).Coverage)
}

func TestVerify_RequireTyped(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", groceryMarco)
	polo := env.file(t, "polo.md", "just prose, no directives\n")

	code, _, _ := env.run(t, "verify", marco, polo)
	assert.Equal(t, 0, code)

	code, _, stderr := env.run(t, "verify", "--require-typed", marco, polo)
	assert.Equal(t, exitNoTypedUnits, code)
	assert.Contains(t, stderr, "no typed")
	assert.FileExists(t, filepath.Join(env.out, artifact.ReportJSONFile))
}

func TestVerify_Errors(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", groceryMarco)

	tests := []struct {
		name string
		args []string
	}{
		{"missing args", []string{"verify", marco}},
		{"missing file", []string{"verify", marco, filepath.Join(env.dir, "absent.md")}},
		{"unknown command", []string{"frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := env.run(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestVerify_InvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.config, []byte("match_min: 2\n"), 0o600))
	marco := env.file(t, "marco.txt", groceryMarco)
	polo := env.file(t, "polo.md", groceryPolo)

	code, _, stderr := env.run(t, "verify", marco, polo)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "match_min")
}

func TestDraft_WritesDraftAndSelfVerifies(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", "- the output format is ugly?\n- update the README\n")

	code, stdout, stderr := env.run(t, "draft", marco)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(filepath.Join(env.out, artifact.DraftFile))
	require.NoError(t, err)
	draft := string(data)
	assert.Contains(t, draft, "## Thread 1: OpenCode output formatting")
	assert.Contains(t, draft, "[trace:m:0001]")
	assert.Contains(t, draft, "[trace:m:0002]")

	assert.Equal(t, 1.0, env.readReport(t).Coverage)
	assert.Contains(t, stdout, "marcopolo draft")
}

func TestDraft_CustomRules(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", "- buy milk\n")
	rules := env.file(t, "rules.toml", "[[topic]]\ntitle = \"Shopping\"\nkeywords = [\"milk\"]\n")

	code, _, stderr := env.run(t, "draft", "--rules", rules, marco)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(filepath.Join(env.out, artifact.DraftFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Thread 1: Shopping")
}

func TestDraft_BadRules(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", "- buy milk\n")
	rules := env.file(t, "rules.toml", "[[topic]]\ntitle = \"Empty\"\n")

	code, _, stderr := env.run(t, "draft", "--rules", rules, marco)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid draft rules")
}

func TestDraft_AdmissionFailure(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", "- naïve plan\n")

	code, _, _ := env.run(t, "draft", marco)
	assert.Equal(t, exitAdmission, code)

	data, err := os.ReadFile(filepath.Join(env.out, artifact.AirlockFile))
	require.NoError(t, err)
	var reports map[string]airlock.Report
	require.NoError(t, json.Unmarshal(data, &reports))
	assert.Contains(t, reports, "marco")
	assert.NotContains(t, reports, "polo")
	assert.NoFileExists(t, filepath.Join(env.out, artifact.DraftFile))
}

func TestAirlock(t *testing.T) {
	env := newTestEnv(t)
	good := env.file(t, "good.txt", "plain ascii\n")
	bad := env.file(t, "bad.txt", "em—dash\n")

	code, stdout, _ := env.run(t, "airlock", good)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "ok")

	code, stdout, _ = env.run(t, "airlock", good, bad)
	assert.Equal(t, exitAdmission, code)
	assert.Contains(t, stdout, "rejected (1 non-ASCII)")

	data, err := os.ReadFile(filepath.Join(env.out, artifact.AirlockFile))
	require.NoError(t, err)
	var res struct {
		ASCIIOK bool                      `json:"ascii_ok"`
		Files   map[string]airlock.Report `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	assert.False(t, res.ASCIIOK)
	assert.True(t, res.Files[good].ASCIIOK)
	assert.False(t, res.Files[bad].ASCIIOK)

	code, stdout, _ = env.run(t, "--repair-common-punct", "airlock", bad)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "repaired (1)")
}

func TestConfigCommand(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("MARCOPOLO_MATCH_MIN", "0.3")

	code, stdout, stderr := env.run(t, "--repair-common-punct", "config")
	require.Equal(t, 0, code, stderr)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, 0.3, cfg["match_min"])
	assert.Equal(t, true, cfg["airlock"].(map[string]any)["repair_common_punct"])
	assert.Equal(t, "error", cfg["logging"].(map[string]any)["level"])
	assert.Equal(t, "200ms", cfg["watch"].(map[string]any)["debounce"])
}

func TestMetricsTextfile(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", groceryMarco)
	polo := env.file(t, "polo.md", groceryPolo)
	prom := filepath.Join(env.dir, "marcopolo.prom")

	code, _, stderr := env.run(t, "--metrics-textfile", prom, "verify", marco, polo)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `marcopolo_runs_total{command="verify",outcome="ok"} 1`)
	assert.Contains(t, text, "marcopolo_edges 2")
}

func TestMetricsTextfile_AirlockUsesFileLabel(t *testing.T) {
	env := newTestEnv(t)
	bad := env.file(t, "bad.txt", "em—dash\n")
	prom := filepath.Join(env.dir, "marcopolo.prom")

	code, _, stderr := env.run(t, "--metrics-textfile", prom, "airlock", bad)
	require.Equal(t, exitAdmission, code, stderr)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `marcopolo_admission_failures_total{document="file"} 1`)
	assert.NotContains(t, text, bad)
}

func TestWatch_ReverifiesOnChange(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", groceryMarco)
	polo := env.file(t, "polo.md", groceryPolo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		code, _, _ := env.runContext(ctx, "--quiet", "watch", "--debounce", "20ms", marco, polo)
		done <- code
	}()

	reportPath := filepath.Join(env.out, artifact.ReportJSONFile)
	require.Eventually(t, func() bool {
		_, err := os.Stat(reportPath)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.InDelta(t, 2.0/3.0, env.readReport(t).Coverage, 1e-9)

	fullPolo := groceryPolo + "SRC: buy milk\n"
	require.NoError(t, os.WriteFile(polo, []byte(fullPolo), 0o600))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(reportPath)
		if err != nil {
			return false
		}
		var r verify.Report
		return json.Unmarshal(data, &r) == nil && r.Coverage == 1.0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(assert.AnError))
	assert.Equal(t, 2, exitCode(&exitError{code: 2, err: assert.AnError}))
}

func TestRenderSummary(t *testing.T) {
	engine, err := pipeline.New(nil)
	require.NoError(t, err)
	res, err := engine.Verify(context.Background(), groceryMarco, groceryPolo+"NOTE: not a directive\n")
	require.NoError(t, err)
	require.NotEmpty(t, res.NearMisses)

	got := renderSummary(res, "out")
	assert.Contains(t, got, "marcopolo verify")
	assert.Contains(t, got, "4 (3 typed)")
	assert.Contains(t, got, "Near misses")
	assert.Contains(t, got, "out")
}

func TestRenderRejection(t *testing.T) {
	_, rep, ok := airlock.Admit("caf\u00e9", false)
	require.False(t, ok)
	err := &pipeline.AdmissionError{Reports: map[string]airlock.Report{"marco": rep}}

	got := renderRejection(err, "out/airlock_report.json")
	assert.Contains(t, got, "marco")
	assert.Contains(t, got, "1 non-ASCII, first U+00E9 at 3")
	assert.Contains(t, got, "out/airlock_report.json")
}

func TestVerify_Render(t *testing.T) {
	env := newTestEnv(t)
	marco := env.file(t, "marco.txt", groceryMarco)
	polo := env.file(t, "polo.md", groceryPolo)

	code, stdout, stderr := env.run(t, "verify", "--render", marco, polo)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Verification report")
	assert.Contains(t, stdout, "what about groceries?")
}

func TestReadFiles(t *testing.T) {
	env := newTestEnv(t)
	a := env.file(t, "a.txt", "alpha")
	b := env.file(t, "b.txt", "beta")

	texts, err := readFiles(context.Background(), b, a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "alpha", "beta"}, texts)

	_, err = readFiles(context.Background(), a, filepath.Join(env.dir, "absent"))
	assert.ErrorContains(t, err, "absent")
}
