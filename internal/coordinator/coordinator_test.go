package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/async"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/gaps"
	"github.com/joseph-ayodele/bytelense/internal/research"
)

type fakeDB struct {
	rec      entity.NutritionRecord
	found    bool
	err      error
	delay    time.Duration
	searched atomic.Int32
	looked   atomic.Int32
}

func (f *fakeDB) LookupByBarcode(ctx context.Context, _ string) (entity.NutritionRecord, bool, error) {
	f.looked.Add(1)
	return f.respond(ctx)
}

func (f *fakeDB) SearchByName(ctx context.Context, _ string) (entity.NutritionRecord, bool, error) {
	f.searched.Add(1)
	return f.respond(ctx)
}

func (f *fakeDB) respond(ctx context.Context) (entity.NutritionRecord, bool, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return entity.NutritionRecord{}, false, ctx.Err()
		}
	}
	return f.rec, f.found, f.err
}

// fakeResearcher returns partial findings plus the context error when its
// deadline hits before delay elapses.
type fakeResearcher struct {
	rec      entity.NutritionRecord
	cits     []entity.CitationSource
	conf     float64
	err      error
	delay    time.Duration
	dataType string
}

func (f *fakeResearcher) Research(ctx context.Context, _ string, _ research.Hints, dataType string) (entity.NutritionRecord, []entity.CitationSource, float64, error) {
	f.dataType = dataType
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return f.rec, f.cits, f.conf, ctx.Err()
		}
	}
	return f.rec, f.cits, f.conf, f.err
}

func ocrRecord() entity.NutritionRecord {
	return entity.NutritionRecord{
		Barcode:          "3017620422003",
		PerServing:       entity.Nutrients{constants.Sugar: 11, constants.Calories: 210},
		Allergens:        []string{"Milk"},
		Confidence:       0.5,
		ExtractionMethod: constants.MethodHeuristic,
	}
}

func offRecord() entity.NutritionRecord {
	return entity.NutritionRecord{
		Name:             "Nutella",
		Brand:            "Ferrero",
		Barcode:          "3017620422003",
		Per100g:          entity.Nutrients{constants.Calories: 539, constants.Sugar: 56.3},
		PerServing:       entity.Nutrients{constants.Sugar: 8.4, constants.Fat: 4.6},
		ServingSize:      "15 g",
		ServingSizeG:     15,
		Ingredients:      []string{"Sugar", "Palm oil", "Hazelnuts"},
		Allergens:        []string{"milk", "Nuts"},
		Confidence:       0.9,
		ExtractionMethod: constants.MethodOpenFoodFacts,
	}
}

func TestBarcodeHitWithResearchTimeoutKeepsPartials(t *testing.T) {
	db := &fakeDB{rec: offRecord(), found: true, delay: 20 * time.Millisecond}
	rs := &fakeResearcher{
		rec:   entity.NutritionRecord{NetQuantity: "400 g", Per100g: entity.Nutrients{constants.Protein: 6.3}},
		cits:  []entity.CitationSource{{SourceType: constants.SourceWeb, Title: "Nutella facts", URL: "https://example.com/nutella"}},
		conf:  0.6,
		delay: time.Second,
	}
	c := New(db, rs, async.NewGate(3, nil), Config{ResearchTimeout: 80 * time.Millisecond}, nil)

	primary := ocrRecord()
	out, err := c.Retrieve(context.Background(), primary, gaps.Analyze(primary))
	if err != nil {
		t.Fatalf("no pipeline-level error expected, got %v", err)
	}
	rec := out.Record
	if rec.Confidence < 0.6 {
		t.Fatalf("confidence %.2f below 0.6", rec.Confidence)
	}
	if rec.PerServing[constants.Sugar] != 11 {
		t.Fatalf("label sugar must stay primary, got %v", rec.PerServing[constants.Sugar])
	}
	if rec.PerServing[constants.Fat] != 4.6 || rec.Name != "Nutella" || rec.ServingSizeG != 15 {
		t.Fatalf("empty slots should be filled from the database: %+v", rec)
	}
	if rec.NetQuantity != "400 g" || rec.Per100g[constants.Protein] != 6.3 {
		t.Fatalf("partial research findings should fill remaining slots: %+v", rec)
	}
	if len(rec.Allergens) != 2 {
		t.Fatalf("allergens should union case-insensitively, got %v", rec.Allergens)
	}
	if rec.ExtractionMethod != constants.MethodMerged {
		t.Fatalf("method: got %s", rec.ExtractionMethod)
	}
	if len(out.Citations) != 3 {
		t.Fatalf("expected label, database and web citations, got %d", len(out.Citations))
	}
	var timedOut bool
	for _, d := range out.Degradations {
		if d.Kind == "external_service_timeout" {
			timedOut = true
		}
	}
	if !timedOut {
		t.Fatalf("research timeout should be annotated: %+v", out.Degradations)
	}
	if primary.Name != "" || len(primary.Allergens) != 1 {
		t.Fatal("primary record must not be mutated")
	}
}

func TestAllBranchesFailCapsConfidence(t *testing.T) {
	db := &fakeDB{err: errors.New("503")}
	rs := &fakeResearcher{err: errors.New("agent unavailable")}
	c := New(db, rs, nil, Config{}, nil)

	primary := ocrRecord()
	primary.Confidence = 0.55
	out, err := c.Retrieve(context.Background(), primary, gaps.Analyze(primary))
	if err != nil {
		t.Fatal(err)
	}
	if out.Record.Confidence != FailureConfidenceCap {
		t.Fatalf("confidence: got %.2f", out.Record.Confidence)
	}
	if out.Record.ExtractionMethod != constants.MethodHeuristic || out.Record.Name != "" {
		t.Fatalf("record should be unchanged: %+v", out.Record)
	}
	if len(out.Degradations) < 3 {
		t.Fatalf("expected two branch failures and an unresolved gap, got %+v", out.Degradations)
	}
}

func TestBranchesRunConcurrently(t *testing.T) {
	db := &fakeDB{rec: offRecord(), found: true, delay: 100 * time.Millisecond}
	rs := &fakeResearcher{rec: entity.NutritionRecord{NetQuantity: "750 g"}, conf: 0.5, delay: 100 * time.Millisecond}
	c := New(db, rs, async.NewGate(3, nil), Config{}, nil)

	primary := ocrRecord()
	start := time.Now()
	if _, err := c.Retrieve(context.Background(), primary, gaps.Analyze(primary)); err != nil {
		t.Fatal(err)
	}
	if took := time.Since(start); took > 180*time.Millisecond {
		t.Fatalf("branches look sequential: took %v", took)
	}
}

func TestNameSearchWithoutBarcode(t *testing.T) {
	db := &fakeDB{rec: offRecord(), found: true}
	c := New(db, nil, nil, Config{}, nil)
	primary := entity.NutritionRecord{Name: "Nutella", ServingSize: "15 g", Confidence: 0.4}
	out, err := c.Retrieve(context.Background(), primary, gaps.Analyze(primary))
	if err != nil {
		t.Fatal(err)
	}
	if db.searched.Load() != 1 || db.looked.Load() != 0 {
		t.Fatalf("expected one name search, got search=%d lookup=%d", db.searched.Load(), db.looked.Load())
	}
	if !out.Record.HasEnergy() || out.Record.Confidence != 0.9 {
		t.Fatalf("energy should come from the search: %+v", out.Record)
	}
	if !out.Remaining.Complete() {
		t.Fatalf("gaps should be resolved: %v", out.Remaining.CriticalGaps)
	}
}

func TestNothingToDo(t *testing.T) {
	db := &fakeDB{}
	rs := &fakeResearcher{}
	c := New(db, rs, nil, Config{}, nil)
	primary := entity.NutritionRecord{Name: "Oats", ServingSize: "40 g", PerServing: entity.Nutrients{constants.Calories: 150}, Confidence: 0.7}
	out, err := c.Retrieve(context.Background(), primary, gaps.Analyze(primary))
	if err != nil {
		t.Fatal(err)
	}
	if db.looked.Load()+db.searched.Load() != 0 || rs.dataType != "" {
		t.Fatal("no branch should be issued for a complete record without barcode")
	}
	if out.Record.Confidence != 0.7 || len(out.Degradations) != 0 {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestResearchDataTypeFollowsGaps(t *testing.T) {
	rs := &fakeResearcher{}
	c := New(nil, rs, nil, Config{}, nil)
	primary := entity.NutritionRecord{Name: "Oats", PerServing: entity.Nutrients{constants.Calories: 150}}
	_, _ = c.Retrieve(context.Background(), primary, gaps.Analyze(primary))
	if rs.dataType != research.DataServingSize {
		t.Fatalf("data type: got %s", rs.dataType)
	}
}

func TestParentCancellationIsReported(t *testing.T) {
	db := &fakeDB{rec: offRecord(), found: true, delay: time.Second}
	c := New(db, nil, nil, Config{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	primary := ocrRecord()
	out, err := c.Retrieve(ctx, primary, gaps.Analyze(primary))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline, got %v", err)
	}
	if out.Record.Barcode != primary.Barcode {
		t.Fatal("best effort record should still be returned")
	}
}

func TestFill(t *testing.T) {
	dst := entity.NutritionRecord{Name: "Label name", Allergens: []string{"Peanuts"}}
	changed := Fill(&dst, entity.NutritionRecord{Name: "DB name", Brand: "Acme", Allergens: []string{"peanuts", "Soy"}})
	if !changed || dst.Name != "Label name" || dst.Brand != "Acme" {
		t.Fatalf("unexpected fill %+v", dst)
	}
	if len(dst.Allergens) != 2 || dst.Allergens[1] != "Soy" {
		t.Fatalf("allergens: %v", dst.Allergens)
	}
	if Fill(&dst, entity.NutritionRecord{Name: "Other"}) {
		t.Fatal("filling present slots should report no change")
	}
}
