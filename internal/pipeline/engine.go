// Package pipeline wires admission, extraction, matching, verification and
// drafting into the operations the marcopolo commands run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/marcopolo/internal/airlock"
	"github.com/fyrsmithlabs/marcopolo/internal/config"
	"github.com/fyrsmithlabs/marcopolo/internal/draft"
	"github.com/fyrsmithlabs/marcopolo/internal/extract"
	"github.com/fyrsmithlabs/marcopolo/internal/logging"
	"github.com/fyrsmithlabs/marcopolo/internal/match"
	"github.com/fyrsmithlabs/marcopolo/internal/metrics"
	"github.com/fyrsmithlabs/marcopolo/internal/verify"
)

// Document names used in admission reports. DocFile is the metric label
// for documents named by file path, as in the airlock command.
const (
	DocMarco = "marco"
	DocPolo  = "polo"
	DocFile  = "file"
)

// DocumentClass maps a document name to a bounded metric label value.
func DocumentClass(name string) string {
	switch name {
	case DocMarco, DocPolo:
		return name
	default:
		return DocFile
	}
}

// Operation names used in telemetry.
const (
	OpAirlock = "airlock"
	OpVerify  = "verify"
	OpDraft   = "draft"
)

// Document is a named input text.
type Document struct {
	Name string
	Text string
}

// AirlockResult is the outcome of admitting a set of documents.
type AirlockResult struct {
	ASCIIOK bool                      `json:"ascii_ok"`
	Files   map[string]airlock.Report `json:"files"`
}

// Result holds every intermediate product of a verification run.
type Result struct {
	Admission  map[string]airlock.Report
	Spans      []extract.Span
	Units      []extract.Unit
	NearMisses []extract.NearMiss
	Edges      []match.Edge
	Candidates match.Candidates
	Analysis   *verify.Analysis
	Markdown   string

	// Draft is the generated POLO text; empty for plain verification.
	Draft string
}

// Report returns the aggregate verification report.
func (r *Result) Report() verify.Report {
	return r.Analysis.Report
}

// Engine runs marcopolo operations. It holds no per-run state, so one
// engine may serve concurrent calls.
type Engine struct {
	cfg          *config.Config
	scorer       match.Scorer
	matcher      *match.Matcher
	rules        *draft.Rules
	generator    *draft.Generator
	logger       *logging.Logger
	telemetry    *Telemetry
	requireTyped bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTelemetry sets the engine instrumentation.
func WithTelemetry(t *Telemetry) Option {
	return func(e *Engine) { e.telemetry = t }
}

// WithScorer replaces the TF-IDF cosine scorer.
func WithScorer(s match.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithRules sets the draft rules, overriding draft.rules_path.
func WithRules(r draft.Rules) Option {
	return func(e *Engine) { e.rules = &r }
}

// WithRequireTyped makes runs without SRC, OPEN or PROP units fail with
// ErrNoTypedUnits.
func WithRequireTyped(require bool) Option {
	return func(e *Engine) { e.requireTyped = require }
}

// New creates an engine. A nil cfg uses config.Default.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.telemetry == nil {
		t, err := NewTelemetry(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("creating telemetry: %w", err)
		}
		e.telemetry = t
	}
	if e.rules == nil {
		rules := draft.DefaultRules()
		if cfg.Draft.RulesPath != "" {
			loaded, err := draft.LoadRules(cfg.Draft.RulesPath)
			if err != nil {
				return nil, fmt.Errorf("loading draft rules: %w", err)
			}
			rules = loaded
		}
		e.rules = &rules
	}

	e.matcher = match.NewMatcher(e.scorer, cfg.MatchConfig())
	e.generator = draft.NewGenerator(*e.rules)
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Airlock admits every document independently. When any document fails,
// the full result is returned together with an *AdmissionError.
func (e *Engine) Airlock(ctx context.Context, docs []Document) (*AirlockResult, error) {
	ctx, span := e.telemetry.startStage(ctx, OpAirlock, attribute.Int("documents", len(docs)))

	res := &AirlockResult{ASCIIOK: true, Files: make(map[string]airlock.Report, len(docs))}
	for _, doc := range docs {
		_, rep := e.admitOne(ctx, doc)
		res.Files[doc.Name] = rep
		if !rep.ASCIIOK {
			res.ASCIIOK = false
		}
	}

	var err error
	if !res.ASCIIOK {
		err = &AdmissionError{Reports: res.Files}
	}
	e.telemetry.recordRun(ctx, OpAirlock, Outcome(err))
	endStage(span, err)
	return res, err
}

// Verify checks a POLO document against its MARCO source.
//
// Both documents pass admission first; if either fails, the returned error
// is an *AdmissionError carrying both reports and no result. Otherwise the
// result is always returned, alongside ErrNoTypedUnits when the engine
// requires typed units and the POLO has none.
func (e *Engine) Verify(ctx context.Context, marco, polo string) (*Result, error) {
	ctx, span := e.telemetry.startStage(ctx, OpVerify)

	texts, reports, err := e.admit(ctx, Document{DocMarco, marco}, Document{DocPolo, polo})
	if err != nil {
		e.telemetry.recordRun(ctx, OpVerify, Outcome(err))
		endStage(span, err)
		return nil, err
	}

	spans := e.extractSpans(ctx, texts[DocMarco])
	res, err := e.run(ctx, OpVerify, spans, texts[DocPolo])
	res.Admission = reports

	e.telemetry.recordRun(ctx, OpVerify, Outcome(err))
	endStage(span, err)
	return res, err
}

// Draft generates a POLO document from MARCO and verifies the draft
// against its source.
func (e *Engine) Draft(ctx context.Context, marco string) (*Result, error) {
	ctx, span := e.telemetry.startStage(ctx, OpDraft)

	texts, reports, err := e.admit(ctx, Document{DocMarco, marco})
	if err != nil {
		e.telemetry.recordRun(ctx, OpDraft, Outcome(err))
		endStage(span, err)
		return nil, err
	}

	spans := e.extractSpans(ctx, texts[DocMarco])

	_, dspan := e.telemetry.startStage(ctx, "generate_draft", attribute.Int("spans", len(spans)))
	polo := e.generator.Draft(spans)
	endStage(dspan, nil)

	res, err := e.run(ctx, OpDraft, spans, polo)
	res.Admission = reports
	res.Draft = polo

	e.telemetry.recordRun(ctx, OpDraft, Outcome(err))
	endStage(span, err)
	return res, err
}

// admit runs every document through the gate and returns the admitted
// texts by name.
func (e *Engine) admit(ctx context.Context, docs ...Document) (map[string]string, map[string]airlock.Report, error) {
	texts := make(map[string]string, len(docs))
	reports := make(map[string]airlock.Report, len(docs))
	ok := true
	for _, doc := range docs {
		text, rep := e.admitOne(ctx, doc)
		reports[doc.Name] = rep
		if !rep.ASCIIOK {
			ok = false
			continue
		}
		texts[doc.Name] = text
	}
	if !ok {
		return nil, nil, &AdmissionError{Reports: reports}
	}
	return texts, reports, nil
}

func (e *Engine) admitOne(ctx context.Context, doc Document) (string, airlock.Report) {
	ctx = logging.WithDocument(ctx, doc.Name)
	ctx, span := e.telemetry.startStage(ctx, "admit", attribute.String("document", doc.Name))
	defer span.End()

	text, rep, ok := airlock.Admit(doc.Text, e.cfg.Airlock.RepairCommonPunct)
	span.SetAttributes(
		attribute.Bool("ascii_ok", ok),
		attribute.Int("non_ascii", len(rep.NonASCII)),
	)

	switch {
	case !ok:
		e.telemetry.recordRejection(ctx, DocumentClass(doc.Name))
		fields := []zap.Field{zap.Int("non_ascii", len(rep.NonASCII))}
		if len(rep.NonASCII) > 0 {
			first := rep.NonASCII[0]
			fields = append(fields, zap.Int("first_pos", first.Pos), zap.String("first_codepoint", first.Codepoint))
		}
		e.logger.Warn(ctx, "document rejected by admission gate", fields...)
	case rep.Repaired:
		e.logger.Info(ctx, "document admitted after punctuation repair", zap.Int("repairs", len(rep.Repairs)))
	default:
		e.logger.Debug(ctx, "document admitted")
	}
	return text, rep
}

func (e *Engine) extractSpans(ctx context.Context, marco string) []extract.Span {
	_, span := e.telemetry.startStage(ctx, "extract_spans")
	defer span.End()

	spans := extract.ExtractSpans(marco)
	span.SetAttributes(attribute.Int("spans", len(spans)))
	e.logger.Debug(ctx, "extracted marco spans", zap.Int("spans", len(spans)))
	return spans
}

// run extracts units from polo, matches them to spans and computes the
// report.
func (e *Engine) run(ctx context.Context, op string, spans []extract.Span, polo string) (*Result, error) {
	_, uspan := e.telemetry.startStage(ctx, "extract_units")
	ux := extract.ExtractUnitsWithDiagnostics(polo)
	uspan.SetAttributes(
		attribute.Int("units", len(ux.Units)),
		attribute.Int("near_misses", len(ux.NearMisses)),
	)
	uspan.End()

	pctx := logging.WithDocument(ctx, DocPolo)
	for _, nm := range ux.NearMisses {
		e.logger.Warn(pctx, "ignored line resembling a directive",
			zap.Int("line", nm.Line),
			zap.String("reason", nm.Reason),
			zap.String("text", verify.Excerpt(nm.Text)),
		)
	}
	e.telemetry.recordNearMisses(ctx, len(ux.NearMisses))

	_, mspan := e.telemetry.startStage(ctx, "match", attribute.String("scorer", e.scorerName()))
	edges, cands := e.matcher.Match(spans, ux.Units)
	mspan.SetAttributes(attribute.Int("edges", len(edges)))
	mspan.End()

	_, vspan := e.telemetry.startStage(ctx, "compute_report")
	analysis := verify.Compute(spans, ux.Units, edges, cands, e.cfg.VerifyParams())
	md := analysis.Markdown()
	vspan.SetAttributes(
		attribute.Float64("confidence", analysis.Confidence),
		attribute.String("label", analysis.Label),
	)
	vspan.End()

	e.telemetry.recordVerification(ctx, op, analysis.Confidence, len(edges))
	e.logger.Info(ctx, "verification complete",
		zap.String("operation", op),
		zap.Int("spans", len(spans)),
		zap.Int("units", len(ux.Units)),
		zap.Int("edges", len(edges)),
		zap.Float64("coverage", analysis.Coverage),
		zap.Float64("confidence", analysis.Confidence),
		zap.String("label", analysis.Label),
	)

	res := &Result{
		Spans:      spans,
		Units:      ux.Units,
		NearMisses: ux.NearMisses,
		Edges:      edges,
		Candidates: cands,
		Analysis:   analysis,
		Markdown:   md,
	}

	if e.requireTyped && analysis.TypedCount == 0 {
		return res, ErrNoTypedUnits
	}
	return res, nil
}

func (e *Engine) scorerName() string {
	if e.scorer == nil {
		return match.NewTFIDF().Name()
	}
	return e.scorer.Name()
}

// Outcome classifies a run error for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrAdmission):
		return metrics.OutcomeRejected
	case errors.Is(err, ErrNoTypedUnits):
		return metrics.OutcomeNoTyped
	default:
		return metrics.OutcomeError
	}
}
