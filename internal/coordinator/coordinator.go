// Package coordinator fills the gaps left by label extraction from the
// product database and the research agent, and merges what comes back.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/async"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/gaps"
	"github.com/joseph-ayodele/bytelense/internal/research"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

const (
	// FailureConfidenceCap bounds confidence when every issued branch failed.
	FailureConfidenceCap = 0.3
	// PartialResearchFactor discounts research findings cut short by a deadline.
	PartialResearchFactor = 0.5
)

// ProductDB is the product-database collaborator.
type ProductDB interface {
	LookupByBarcode(ctx context.Context, barcode string) (entity.NutritionRecord, bool, error)
}

// NameSearcher is implemented by product databases that can search by name.
type NameSearcher interface {
	SearchByName(ctx context.Context, name string) (entity.NutritionRecord, bool, error)
}

type Config struct {
	LookupTimeout   time.Duration // default 3s
	ResearchTimeout time.Duration // default 45s
}

// Result is the merged record plus its provenance.
type Result struct {
	Record       entity.NutritionRecord
	Citations    []entity.CitationSource
	Degradations []entity.Degradation
	Remaining    entity.ExtractionGapReport
}

type Coordinator struct {
	db         ProductDB
	researcher research.Researcher
	gate       *async.Gate
	cfg        Config
	logger     *slog.Logger
}

// New builds a coordinator. db and researcher may be nil when unavailable.
func New(db ProductDB, researcher research.Researcher, gate *async.Gate, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 3 * time.Second
	}
	if cfg.ResearchTimeout <= 0 {
		cfg.ResearchTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{db: db, researcher: researcher, gate: gate, cfg: cfg, logger: logger}
}

type branch struct {
	name       string
	issued     bool
	ok         bool
	partial    bool
	record     entity.NutritionRecord
	citations  []entity.CitationSource
	confidence float64
	err        error
}

// Retrieve runs the lookup and research branches concurrently and merges
// their findings into primary. It never fails on a collaborator error; the
// only error returned is the caller's own context error, alongside the best
// result assembled so far.
func (c *Coordinator) Retrieve(ctx context.Context, primary entity.NutritionRecord, report entity.ExtractionGapReport) (Result, error) {
	start := time.Now()
	var lookup, res branch
	lookup.name, res.name = "product_lookup", "research_agent"

	var g errgroup.Group
	if c.db != nil {
		if primary.Barcode != "" {
			lookup.issued = true
			g.Go(func() error {
				c.runLookup(ctx, &lookup, func(ctx context.Context) (entity.NutritionRecord, bool, error) {
					return c.db.LookupByBarcode(ctx, primary.Barcode)
				})
				return nil
			})
		} else if ns, ok := c.db.(NameSearcher); ok && report.NeedsProductLookup && strings.TrimSpace(primary.Name) != "" {
			lookup.issued = true
			query := strings.TrimSpace(primary.Brand + " " + primary.Name)
			g.Go(func() error {
				c.runLookup(ctx, &lookup, func(ctx context.Context) (entity.NutritionRecord, bool, error) {
					return ns.SearchByName(ctx, query)
				})
				return nil
			})
		}
	}
	if c.researcher != nil && report.NeedsResearchAgent {
		res.issued = true
		hints := research.Hints{Name: primary.Name, Brand: primary.Brand, Barcode: primary.Barcode, Missing: report.CriticalGaps}
		g.Go(func() error {
			c.runResearch(ctx, &res, hints)
			return nil
		})
	}
	_ = g.Wait()

	out := c.merge(primary, lookup, res)
	c.logger.Info("coordinator.retrieve.done",
		"lookup_issued", lookup.issued, "lookup_ok", lookup.ok,
		"research_issued", res.issued, "research_ok", res.ok, "research_partial", res.partial,
		"confidence", out.Record.Confidence,
		"remaining_gaps", out.Remaining.CriticalGaps,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Coordinator) runLookup(ctx context.Context, b *branch, call func(context.Context) (entity.NutritionRecord, bool, error)) {
	bctx, cancel := context.WithTimeout(ctx, c.cfg.LookupTimeout)
	defer cancel()

	type found struct {
		rec entity.NutritionRecord
		ok  bool
	}
	r, err := async.Run(bctx, c.gate, b.name, func(ctx context.Context) (found, error) {
		rec, ok, err := call(ctx)
		return found{rec, ok}, err
	})
	switch {
	case err != nil:
		b.err = err
		c.logger.Warn("coordinator.lookup.failed", "error", err)
	case !r.ok:
		b.err = errNotFound
		c.logger.Info("coordinator.lookup.not_found")
	default:
		b.ok = true
		b.record = r.rec
		b.confidence = r.rec.Confidence
		b.citations = []entity.CitationSource{productCitation(r.rec)}
	}
}

func (c *Coordinator) runResearch(ctx context.Context, b *branch, hints research.Hints) {
	bctx, cancel := context.WithTimeout(ctx, c.cfg.ResearchTimeout)
	defer cancel()

	dataType := research.DataTypeFor(hints.Missing)
	task := research.TaskFor(hints, dataType)

	type findings struct {
		rec  entity.NutritionRecord
		cits []entity.CitationSource
		conf float64
	}
	var partial findings
	_, err := async.Run(bctx, c.gate, b.name, func(ctx context.Context) (struct{}, error) {
		rec, cits, conf, err := c.researcher.Research(ctx, task, hints, dataType)
		partial = findings{rec, cits, conf}
		return struct{}{}, err
	})
	hasFindings := research.HasFindings(partial.rec)
	switch {
	case err == nil && hasFindings:
		b.ok = true
		b.record, b.citations, b.confidence = partial.rec, partial.cits, partial.conf
	case err == nil:
		b.err = errNotFound
		b.citations = partial.cits
		c.logger.Info("coordinator.research.empty", "data_type", dataType)
	case hasFindings && isTimeout(err):
		b.ok, b.partial = true, true
		b.err = err
		b.record, b.citations = partial.rec, partial.cits
		b.confidence = partial.conf * PartialResearchFactor
		c.logger.Warn("coordinator.research.partial", "data_type", dataType, "confidence", b.confidence)
	default:
		b.err = err
		c.logger.Warn("coordinator.research.failed", "data_type", dataType, "error", err)
	}
}

var errNotFound = errors.New("no data found")

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (c *Coordinator) merge(primary entity.NutritionRecord, branches ...branch) Result {
	merged := primary.Clone()
	var out Result
	if !primary.Empty() {
		out.Citations = append(out.Citations, labelCitation(primary))
	}

	issued, succeeded, contributed := 0, 0, false
	conf := primary.Confidence
	for _, b := range branches {
		if !b.issued {
			continue
		}
		issued++
		out.Citations = appendCitations(out.Citations, b.citations)
		if b.err != nil && !errors.Is(b.err, errNotFound) {
			out.Degradations = append(out.Degradations, degradation(b))
		}
		if !b.ok {
			continue
		}
		succeeded++
		if Fill(&merged, b.record) {
			contributed = true
		}
		if b.confidence > conf {
			conf = b.confidence
		}
	}

	if issued > 0 && succeeded == 0 {
		merged = primary.Clone()
		conf = min(primary.Confidence, FailureConfidenceCap)
	}
	if contributed {
		merged.ExtractionMethod = constants.MethodMerged
	}
	merged.Confidence = utils.Clamp(conf, 0, 1)

	out.Record = merged
	out.Remaining = gaps.Analyze(merged)
	if !out.Remaining.Complete() {
		out.Degradations = append(out.Degradations, entity.Degradation{
			Kind:   string(common.KindGapUnresolved),
			Stage:  constants.StageNutritionRetrieval,
			Detail: "still missing: " + strings.Join(out.Remaining.CriticalGaps, ", "),
		})
	}
	return out
}

func degradation(b branch) entity.Degradation {
	kind := string(common.KindExternalServiceError)
	if isTimeout(b.err) {
		kind = string(common.KindExternalServiceTimeout)
	}
	detail := fmt.Sprintf("%s: %v", b.name, b.err)
	if b.partial {
		detail = b.name + ": timed out, partial findings used at reduced confidence"
	}
	return entity.Degradation{Kind: kind, Stage: constants.StageNutritionRetrieval, Detail: detail}
}
