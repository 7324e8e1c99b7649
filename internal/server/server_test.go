package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/export"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
	"github.com/joseph-ayodele/bytelense/internal/pipeline"
	"github.com/joseph-ayodele/bytelense/internal/profiles"
	"github.com/joseph-ayodele/bytelense/internal/repository"
)

type fakeScanner struct {
	assessment entity.DetailedAssessment
	err        error
	got        pipeline.Request
}

func (f *fakeScanner) Scan(_ context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (entity.DetailedAssessment, error) {
	f.got = req
	for i, st := range []constants.Stage{constants.StageImageProcessing, constants.StageNutritionRetrieval, constants.StageScoring} {
		progress(entity.Progress{ScanID: "s1", Stage: st, StageNumber: st.Index(), TotalStages: constants.TotalStages, Fraction: float64(i) / 4})
	}
	return f.assessment, f.err
}

type fixture struct {
	client  *Client
	scanner *fakeScanner
	ledger  *ledger.Ledger
}

func start(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	l := ledger.New(repository.NewLedgerRepository(store, logger), ledger.WithLocation(time.UTC), ledger.WithLogger(logger))
	prof := profiles.NewService(repository.NewProfileRepository(store, logger), logger)
	scanner := &fakeScanner{}

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterScanService(s, NewScanServer(scanner, l, export.NewService(l, logger), prof, logger))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return fixture{client: NewClient(conn), scanner: scanner, ledger: l}
}

func TestScanStreamsProgressThenAssessment(t *testing.T) {
	f := start(t)
	f.scanner.assessment = entity.DetailedAssessment{
		ScanID:     "s1",
		User:       "u1",
		FinalScore: 6.5,
		Verdict:    constants.VerdictGood,
		Citations:  []entity.CitationSource{{Number: 1, Title: "Open Food Facts"}},
		InlineCitations: map[string][]int{
			"High in protein": {1},
		},
	}

	var progress []entity.Progress
	res, err := f.client.Scan(context.Background(), ScanRequest{User: "u1", ImagePath: "label.jpg", Barcode: "123", Servings: 2}, func(p entity.Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(progress) != 3 || progress[1].Stage != constants.StageNutritionRetrieval {
		t.Errorf("progress = %+v", progress)
	}
	if res.Error != nil || res.Assessment == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Assessment.FinalScore != 6.5 || res.Assessment.InlineCitations["High in protein"][0] != 1 {
		t.Errorf("assessment = %+v", res.Assessment)
	}
	if f.scanner.got.BarcodeHint != "123" || f.scanner.got.Servings != 2 {
		t.Errorf("request = %+v", f.scanner.got)
	}
}

func TestScanReportsErrorEvent(t *testing.T) {
	f := start(t)
	f.scanner.err = common.NewExtractionFailure(nil)

	res, err := f.client.Scan(context.Background(), ScanRequest{User: "u1", ImagePath: "blurry.jpg"}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Assessment != nil || res.Error == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Error.Code != string(common.KindExtractionFailure) || !res.Error.Recoverable || len(res.Error.RetrySuggestions) != 3 {
		t.Errorf("error event = %+v", res.Error)
	}
}

func TestScanLedgerFailureDeliversBoth(t *testing.T) {
	f := start(t)
	f.scanner.assessment = entity.DetailedAssessment{ScanID: "s1", Verdict: constants.VerdictModerate}
	f.scanner.err = common.NewLedgerWriteFailure(io.ErrUnexpectedEOF)

	res, err := f.client.Scan(context.Background(), ScanRequest{User: "u1", ImagePath: "x.jpg"}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Assessment == nil || res.Error == nil || res.Error.Code != string(common.KindLedgerWriteFailure) {
		t.Errorf("result = %+v", res)
	}
}

func TestScanInvalidRequest(t *testing.T) {
	f := start(t)
	f.scanner.err = common.NewValidator().Field("user", "", common.Required).Error()

	_, err := f.client.Scan(context.Background(), ScanRequest{ImagePath: "x.jpg"}, nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("got %v", err)
	}
}

func TestLedgerReads(t *testing.T) {
	f := start(t)
	rec := entity.ConsumptionRecord{
		ScanID:           "s1",
		Timestamp:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Nutrition:        entity.NutritionRecord{Name: "Soup", PerServing: entity.Nutrients{constants.Sodium: 800}},
		ServingsConsumed: 1,
		Verdict:          constants.VerdictModerate,
	}
	if _, err := f.ledger.Append(context.Background(), "u1", rec); err != nil {
		t.Fatal(err)
	}

	day, err := f.client.GetDay(context.Background(), "u1", "2026-03-10")
	if err != nil {
		t.Fatalf("GetDay: %v", err)
	}
	if len(day.Records) != 1 || day.Totals[constants.Sodium] != 800 {
		t.Errorf("day = %+v", day)
	}

	week, err := f.client.GetWeek(context.Background(), "u1", "2026-03-09")
	if err != nil {
		t.Fatalf("GetWeek: %v", err)
	}
	if week.LoggedDays != 1 || week.Scans != 1 || week.Days[1].Date != "2026-03-10" {
		t.Errorf("week = %+v", week)
	}

	if _, err := f.client.GetDay(context.Background(), "u1", "10/03/2026"); status.Code(err) != codes.InvalidArgument {
		t.Errorf("bad date: got %v", err)
	}

	exp, err := f.client.ExportWeek(context.Background(), "u1", "2026-03-09")
	if err != nil {
		t.Fatalf("ExportWeek: %v", err)
	}
	if !bytes.HasPrefix(exp.XLSX, []byte("PK")) || exp.Filename != "bytelense-u1-week-2026-03-09.xlsx" {
		t.Errorf("export = %q, %d bytes", exp.Filename, len(exp.XLSX))
	}
}

func TestProfiles(t *testing.T) {
	f := start(t)
	if _, err := f.client.GetProfile(context.Background(), "u1"); status.Code(err) != codes.NotFound {
		t.Fatalf("missing profile: got %v", err)
	}

	saved, err := f.client.PutProfile(context.Background(), PutProfileRequest{
		User:      "u1",
		Allergens: []string{"peanut", " peanut "},
		Demographics: &entity.Demographics{
			Age: 30, Gender: "female", HeightCm: 165, WeightKg: 60,
		},
	})
	if err != nil {
		t.Fatalf("PutProfile: %v", err)
	}
	if len(saved.Allergens) != 1 || saved.DailyTargets[constants.Calories] <= 0 || saved.Metrics == nil {
		t.Errorf("saved = %+v", saved)
	}

	got, err := f.client.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.DailyTargets[constants.Sugar] != saved.DailyTargets[constants.Sugar] {
		t.Errorf("targets differ: %v vs %v", got.DailyTargets, saved.DailyTargets)
	}

	if _, err := f.client.PutProfile(context.Background(), PutProfileRequest{}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty user: got %v", err)
	}
}
