// Package pipeline runs a label scan end to end: read the label, fill gaps
// from external sources, load the user's consumption context, score, assemble,
// and record the scan in the ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/async"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/coordinator"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/extract"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
	"github.com/joseph-ayodele/bytelense/internal/scoring"
)

// ProfileStore is the read-only profile collaborator.
type ProfileStore interface {
	GetProfile(ctx context.Context, user string) (entity.UserProfile, error)
}

// Retriever fills gaps in a partially extracted record.
type Retriever interface {
	Retrieve(ctx context.Context, primary entity.NutritionRecord, report entity.ExtractionGapReport) (coordinator.Result, error)
}

type Config struct {
	OverallDeadline    time.Duration // default 60s
	StructureTimeout   time.Duration // default 20s
	ReasoningTimeout   time.Duration // default 30s
	LedgerRetryBackoff time.Duration // default 250ms
	GracePeriod        time.Duration // budget for local work after the overall deadline, default 5s
}

func (c Config) withDefaults() Config {
	if c.OverallDeadline <= 0 {
		c.OverallDeadline = 60 * time.Second
	}
	if c.StructureTimeout <= 0 {
		c.StructureTimeout = 20 * time.Second
	}
	if c.ReasoningTimeout <= 0 {
		c.ReasoningTimeout = 30 * time.Second
	}
	if c.LedgerRetryBackoff <= 0 {
		c.LedgerRetryBackoff = 250 * time.Millisecond
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Second
	}
	return c
}

// Deps are the collaborators the orchestrator coordinates.
type Deps struct {
	Extractor  extract.TextExtractor
	Structurer extract.Structurer
	Retriever  Retriever
	Profiles   ProfileStore
	Ledger     *ledger.Ledger
	Scorer     scoring.Engine // reasoning-backed strategy
	Fallback   scoring.Engine // threshold-table strategy
	Gate       *async.Gate
}

// Orchestrator coordinates OCR, retrieval, context, scoring and assembly.
type Orchestrator struct {
	Deps
	contexts *ledger.ContextBuilder
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Fallback == nil {
		deps.Fallback = scoring.NewThresholdEngine(scoring.Config{})
	}
	return &Orchestrator{
		Deps:     deps,
		contexts: ledger.NewContextBuilder(deps.Ledger),
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// Request is one scan.
type Request struct {
	ScanID      string // generated when empty
	User        string
	ImagePath   string // label image or .txt file
	RawText     string // already-extracted label text; skips OCR
	BarcodeHint string
	Servings    float64 // default 1
	At          time.Time
}

func (r Request) validate() error {
	v := common.NewValidator().
		Field("user", r.User, common.Required, common.MaxLength(128))
	if r.Servings != 0 {
		v.Field("servings", r.Servings, common.Positive)
	}
	if r.ImagePath == "" && r.RawText == "" && r.BarcodeHint == "" {
		v.Field("image_path", r.ImagePath, common.Required)
	}
	return v.Error()
}

// ProgressFunc receives stage events in order. It must not block for long.
type ProgressFunc func(entity.Progress)

// scan is the mutable state of one run, private to Scan.
type scan struct {
	req          Request
	parent       context.Context
	run          context.Context
	deadlineHit  bool
	degradations []entity.Degradation
	progress     ProgressFunc
	lastFraction float64
}

func (s *scan) degrade(kind common.ErrorKind, stage constants.Stage, detail string) {
	s.degradations = append(s.degradations, entity.Degradation{Kind: string(kind), Stage: stage, Detail: detail})
}

func (s *scan) emit(stage constants.Stage, fraction float64, msg string) {
	if fraction < s.lastFraction {
		fraction = s.lastFraction
	}
	s.lastFraction = fraction
	if s.progress == nil {
		return
	}
	s.progress(entity.Progress{
		ScanID:      s.req.ScanID,
		Stage:       stage,
		StageNumber: stage.Index(),
		TotalStages: constants.TotalStages,
		Fraction:    fraction,
		Message:     msg,
	})
}

// checkDeadline notes the overall deadline and reports a caller cancellation.
func (s *scan) checkDeadline() error {
	if err := s.parent.Err(); err != nil {
		return err
	}
	if !s.deadlineHit && errors.Is(s.run.Err(), context.DeadlineExceeded) {
		s.deadlineHit = true
	}
	return nil
}

// Scan runs the pipeline. It returns an error only when the label yields
// nothing usable, when the caller cancels, or when the finished assessment
// could not be recorded; in the last case the assessment is returned too.
func (o *Orchestrator) Scan(ctx context.Context, req Request, progress ProgressFunc) (entity.DetailedAssessment, error) {
	if err := req.validate(); err != nil {
		return entity.DetailedAssessment{}, err
	}
	if req.ScanID == "" {
		req.ScanID = uuid.NewString()
	}
	if req.Servings <= 0 {
		req.Servings = 1
	}
	if req.At.IsZero() {
		req.At = o.now()
	}
	ctx = common.WithUserID(common.WithScanID(ctx, req.ScanID), req.User)
	logger := o.logger.With("scan_id", req.ScanID, "user", req.User)

	run, cancel := context.WithTimeout(ctx, o.cfg.OverallDeadline)
	defer cancel()
	s := &scan{req: req, parent: ctx, run: run, progress: progress}

	start := time.Now()
	logger.Info("pipeline.scan.start", "image", req.ImagePath, "raw_text", req.RawText != "", "servings", req.Servings)

	a, err := o.runStages(s, logger)
	if err != nil {
		logger.Error("pipeline.scan.failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return a, err
	}
	logger.Info("pipeline.scan.done",
		"verdict", a.Verdict,
		"final_score", a.FinalScore,
		"confidence", a.Confidence,
		"degradations", len(a.Degradations),
		"deadline_hit", s.deadlineHit,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}

func (o *Orchestrator) runStages(s *scan, logger *slog.Logger) (entity.DetailedAssessment, error) {
	// 1. label -> raw text -> partial record
	s.emit(constants.StageImageProcessing, constants.StageImageProcessing.Fraction(), constants.StageImageProcessing.Message())
	label := o.readLabel(s, logger)
	if label.Kind == common.KindExtractionFailure {
		if err := s.parent.Err(); err != nil {
			return entity.DetailedAssessment{}, err
		}
		return entity.DetailedAssessment{}, common.NewExtractionFailure(label.Err)
	}
	if err := s.checkDeadline(); err != nil {
		return entity.DetailedAssessment{}, err
	}
	structured := o.structure(s, label.Value, logger)
	if err := s.checkDeadline(); err != nil {
		return entity.DetailedAssessment{}, err
	}

	// 2. fill gaps from the product database and research agent
	s.emit(constants.StageNutritionRetrieval, constants.StageNutritionRetrieval.Fraction(), constants.StageNutritionRetrieval.Message())
	retrieved := o.retrieve(s, structured.Value, logger)
	if err := s.checkDeadline(); err != nil {
		return entity.DetailedAssessment{}, err
	}
	nutrition := retrieved.Value.Record

	// 3. profile, ledger snapshot and projected moderation
	s.emit(constants.StageContextLoading, constants.StageContextLoading.Fraction(), constants.StageContextLoading.Message())
	sc := o.loadContext(s, nutrition, logger)
	if err := s.checkDeadline(); err != nil {
		return entity.DetailedAssessment{}, err
	}

	// 4. score with the reasoning strategy, falling back to the threshold table
	s.emit(constants.StageScoring, constants.StageScoring.Fraction(), constants.StageScoring.Message())
	scored := o.score(s, sc.Value, logger)
	if err := s.checkDeadline(); err != nil {
		return entity.DetailedAssessment{}, err
	}

	// 5. assemble and record
	s.emit(constants.StageAssembly, constants.StageAssembly.Fraction(), constants.StageAssembly.Message())
	a := o.assemble(s, sc.Value, scored.Value, retrieved.Value.Citations)
	if err := s.parent.Err(); err != nil {
		logger.Warn("pipeline.scan.cancelled_before_record", "error", err)
		return entity.DetailedAssessment{}, err
	}
	if err := o.record(s, sc.Value, scored.Value, logger); err != nil {
		return a, err
	}
	s.emit(constants.StageAssembly, 1.0, "Assessment ready")
	return a, nil
}

// stageContext bounds work after the overall deadline by the grace period
// while still honoring caller cancellation.
func (o *Orchestrator) stageContext(s *scan, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := s.run
	if s.deadlineHit {
		base = s.parent
		if timeout <= 0 || timeout > o.cfg.GracePeriod {
			timeout = o.cfg.GracePeriod
		}
	}
	return common.WithTimeout(base, timeout)
}

func describe(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}
