// Package app wires configuration into a ready scan pipeline. The daemon and
// the batch CLI build the same graph through Build.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/bytelense/internal/async"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/coordinator"
	"github.com/joseph-ayodele/bytelense/internal/export"
	"github.com/joseph-ayodele/bytelense/internal/extract"
	"github.com/joseph-ayodele/bytelense/internal/labeltext"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
	"github.com/joseph-ayodele/bytelense/internal/llm/openai"
	"github.com/joseph-ayodele/bytelense/internal/ocr"
	"github.com/joseph-ayodele/bytelense/internal/pipeline"
	"github.com/joseph-ayodele/bytelense/internal/productdb"
	"github.com/joseph-ayodele/bytelense/internal/profiles"
	"github.com/joseph-ayodele/bytelense/internal/repository"
	"github.com/joseph-ayodele/bytelense/internal/research"
	"github.com/joseph-ayodele/bytelense/internal/scoring"
)

type Options struct {
	// InMemory keeps the ledger and profiles in process memory instead of the
	// configured database.
	InMemory bool
	// Runner replaces the OCR subprocess runner.
	Runner ocr.Runner
}

// App holds the wired components.
type App struct {
	Config       *common.Config
	DB           *repository.DB // nil when InMemory
	Ledger       *ledger.Ledger
	Profiles     *profiles.Service
	Export       *export.Service
	Orchestrator *pipeline.Orchestrator
	Gate         *async.Gate

	closers []func() error
	logger  *slog.Logger
}

// Build opens storage and wires every collaborator the configuration enables.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, logger: logger}

	// storage
	var docs repository.DocumentStore
	if opts.InMemory {
		docs = repository.NewMemoryStore()
		logger.Info("using in-memory store")
	} else {
		db, err := repository.Open(ctx, repository.Config{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.Database.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		docs = repository.NewDocumentStore(db, logger)
	}

	a.Ledger = ledger.New(repository.NewLedgerRepository(docs, logger), ledger.WithLocation(loc), ledger.WithLogger(logger))
	a.Profiles = profiles.NewService(repository.NewProfileRepository(docs, logger), logger)
	a.Export = export.NewService(a.Ledger, logger)
	a.Gate = async.NewGate(cfg.Pipeline.GateSize, logger)

	// stage 1: OCR and structuring
	var ocrOpts []ocr.Option
	if opts.Runner != nil {
		ocrOpts = append(ocrOpts, ocr.WithRunner(opts.Runner))
	}
	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:           cfg.OCR.Tesseract,
		Zbarimg:             cfg.OCR.Zbarimg,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		HeicConverter:       cfg.OCR.HeicConverter,
		ArtifactCacheDir:    cfg.OCR.CacheDir,
		EnableTSVConfidence: true,
		PSM:                 6,
	}, logger, ocrOpts...)

	llmClient := openai.NewClient(openai.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		JudgeModel:      cfg.LLM.JudgeModel,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout,
		LenientOptional: true,
	}, logger)
	if llmClient.Configured() {
		logger.Info("OpenAI client initialized", "model", cfg.LLM.Model)
	} else {
		logger.Warn("OpenAI API key not configured, label structuring uses the heuristic parser and scoring uses the threshold table")
	}
	structurer := extract.NewChainStructurer(llmClient, labeltext.NewStructurer(logger), cfg.Pipeline.StructureTimeout, logger)

	// stage 2: external data
	researcher, closeResearch, err := newResearcher(cfg.Research, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if closeResearch != nil {
		a.closers = append(a.closers, closeResearch)
	}
	products := productdb.NewClient(productdb.Config{
		BaseURL:   cfg.ProductDB.BaseURL,
		Timeout:   cfg.ProductDB.Timeout,
		UserAgent: cfg.ProductDB.UserAgent,
	}, logger)
	retriever := coordinator.New(products, researcher, a.Gate, coordinator.Config{
		LookupTimeout:   cfg.ProductDB.Timeout,
		ResearchTimeout: cfg.Research.Timeout,
	}, logger)

	// stage 4: scoring
	scoringCfg := scoring.Config{
		Multipliers: scoring.Multipliers{
			Within:      cfg.Scoring.WithinMultiplier,
			Approaching: cfg.Scoring.ApproachingMultiplier,
			Exceeding:   cfg.Scoring.ExceedingMultiplier,
		},
		WarningBudgetFraction: cfg.Scoring.WarningBudgetFraction,
		HighlightFraction:     cfg.Scoring.HighlightFraction,
	}
	deps := pipeline.Deps{
		Extractor:  extract.NewOCRAdapter(extractor, logger),
		Structurer: structurer,
		Retriever:  retriever,
		Profiles:   a.Profiles,
		Ledger:     a.Ledger,
		Fallback:   scoring.NewThresholdEngine(scoringCfg),
		Gate:       a.Gate,
	}
	if llmClient.Configured() {
		deps.Scorer = scoring.NewReasoningEngine(llmClient, scoringCfg, logger)
	}

	a.Orchestrator = pipeline.NewOrchestrator(deps, pipeline.Config{
		OverallDeadline:    cfg.Pipeline.OverallDeadline,
		StructureTimeout:   cfg.Pipeline.StructureTimeout,
		ReasoningTimeout:   cfg.Pipeline.ReasoningTimeout,
		LedgerRetryBackoff: cfg.Pipeline.LedgerRetryBackoff,
	}, logger)

	logger.Info("pipeline ready",
		"time_zone", loc.String(),
		"gate_size", a.Gate.Size(),
		"deadline", cfg.Pipeline.OverallDeadline.String(),
		"research", researchKind(cfg.Research),
	)
	return a, nil
}

// newResearcher prefers the remote agent, then SearXNG. Neither configured
// leaves research disabled.
func newResearcher(cfg common.ResearchConfig, logger *slog.Logger) (research.Researcher, func() error, error) {
	switch {
	case cfg.AgentAddr != "":
		conn, err := research.DialAgent(cfg.AgentAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("dial research agent: %w", err)
		}
		return research.NewAgentClient(conn, logger), conn.Close, nil
	case cfg.SearXNGURL != "":
		return research.NewSearXNG(research.SearXNGConfig{
			BaseURL:    cfg.SearXNGURL,
			MaxResults: cfg.MaxResults,
			Timeout:    cfg.Timeout,
		}, logger), nil, nil
	default:
		return nil, nil, nil
	}
}

func researchKind(cfg common.ResearchConfig) string {
	switch {
	case cfg.AgentAddr != "":
		return "agent"
	case cfg.SearXNGURL != "":
		return "searxng"
	default:
		return "disabled"
	}
}

// Health pings the database; the in-memory store is always healthy.
func (a *App) Health(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.HealthCheck(ctx, 2*time.Second, a.logger)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
