// Package artifact persists verification products to an output directory.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/marcopolo/internal/pipeline"
)

// Artifact file names.
const (
	SpansFile      = "marco_spans.jsonl"
	UnitsFile      = "polo_units.jsonl"
	EdgesFile      = "trace_edges.jsonl"
	ReportJSONFile = "verify_report.json"
	ReportMDFile   = "verify_report.md"
	DraftFile      = "polo_draft.md"
	AirlockFile    = "airlock_report.json"
)

// Writer writes artifacts into one directory, creating it on first use.
type Writer struct {
	dir string
}

// NewWriter returns a writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the full path of an artifact.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

type step struct {
	name  string
	write func(path string) error
}

// WriteResult writes spans, units, edges and both report renderings, plus
// the draft when the result carries one. It returns the written paths.
func (w *Writer) WriteResult(res *pipeline.Result) ([]string, error) {
	var written []string
	steps := []step{
		{SpansFile, func(p string) error { return writeJSONL(p, res.Spans) }},
		{UnitsFile, func(p string) error { return writeJSONL(p, res.Units) }},
		{EdgesFile, func(p string) error { return writeJSONL(p, res.Edges) }},
		{ReportJSONFile, func(p string) error { return writeJSON(p, res.Report()) }},
		{ReportMDFile, func(p string) error { return writeText(p, res.Markdown) }},
	}
	if res.Draft != "" {
		steps = append([]step{{DraftFile, func(p string) error { return writeText(p, res.Draft) }}}, steps...)
	}

	if err := w.ensureDir(); err != nil {
		return nil, err
	}
	for _, s := range steps {
		p := w.Path(s.name)
		if err := s.write(p); err != nil {
			return written, fmt.Errorf("writing %s: %w", s.name, err)
		}
		written = append(written, p)
	}
	return written, nil
}

// WriteAirlock writes airlock_report.json for any JSON-encodable report:
// a *pipeline.AirlockResult or the per-document reports of an
// *pipeline.AdmissionError.
func (w *Writer) WriteAirlock(report any) (string, error) {
	if err := w.ensureDir(); err != nil {
		return "", err
	}
	p := w.Path(AirlockFile)
	if err := writeJSON(p, report); err != nil {
		return "", fmt.Errorf("writing %s: %w", AirlockFile, err)
	}
	return p, nil
}

func (w *Writer) ensureDir() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", w.dir, err)
	}
	return nil
}

// writeJSONL writes one compact JSON object per line.
func writeJSONL[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeJSON writes v indented by two spaces with a trailing newline.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeText(path, text string) error {
	return os.WriteFile(path, []byte(text), 0o644)
}
