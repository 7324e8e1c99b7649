package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/export"
	"github.com/joseph-ayodele/bytelense/internal/ledger"
	"github.com/joseph-ayodele/bytelense/internal/pipeline"
	"github.com/joseph-ayodele/bytelense/internal/profiles"
	"github.com/joseph-ayodele/bytelense/internal/repository"
	"github.com/joseph-ayodele/bytelense/internal/server"
)

type stubScanner struct {
	err error
}

func (s stubScanner) Scan(_ context.Context, req pipeline.Request, _ pipeline.ProgressFunc) (entity.DetailedAssessment, error) {
	if s.err != nil {
		return entity.DetailedAssessment{}, s.err
	}
	return entity.DetailedAssessment{ScanID: "s1", User: req.User, FinalScore: 7, Verdict: constants.VerdictGood}, nil
}

func newTestRouter(t *testing.T, scanErr error, health HealthFunc) (*gin.Engine, *ledger.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	l := ledger.New(repository.NewLedgerRepository(store, logger), ledger.WithLocation(time.UTC), ledger.WithLogger(logger))
	prof := profiles.NewService(repository.NewProfileRepository(store, logger), logger)
	svc := server.NewScanServer(stubScanner{err: scanErr}, l, export.NewService(l, logger), prof, logger)
	return NewRouter(svc, Options{Health: health, Logger: logger}), l
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	if w := do(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	down, _ := newTestRouter(t, nil, func(context.Context) error { return errors.New("db down") })
	if w := do(down, http.MethodGet, "/healthz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDayAndWeek(t *testing.T) {
	r, l := newTestRouter(t, nil, nil)
	rec := entity.ConsumptionRecord{
		ScanID:           "s1",
		Timestamp:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Nutrition:        entity.NutritionRecord{Name: "Apple", PerServing: entity.Nutrients{constants.Calories: 95}},
		ServingsConsumed: 1,
	}
	if _, err := l.Append(context.Background(), "u1", rec); err != nil {
		t.Fatal(err)
	}

	w := do(r, http.MethodGet, "/v1/users/u1/days/2026-03-10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("day status = %d: %s", w.Code, w.Body)
	}
	var day entity.DailyLedgerEntry
	if err := json.Unmarshal(w.Body.Bytes(), &day); err != nil {
		t.Fatal(err)
	}
	if len(day.Records) != 1 || day.Totals[constants.Calories] != 95 {
		t.Errorf("day = %+v", day)
	}

	w = do(r, http.MethodGet, "/v1/users/u1/weeks/2026-03-09", "")
	if w.Code != http.StatusOK {
		t.Fatalf("week status = %d", w.Code)
	}
	var week entity.WeekSummary
	if err := json.Unmarshal(w.Body.Bytes(), &week); err != nil {
		t.Fatal(err)
	}
	if week.LoggedDays != 1 || week.Averages[constants.Calories] != 95 {
		t.Errorf("week = %+v", week)
	}

	if w := do(r, http.MethodGet, "/v1/users/u1/days/yesterday", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d", w.Code)
	}
}

func TestExportDownload(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	w := do(r, http.MethodGet, "/v1/users/u1/weeks/2026-03-09/export.xlsx", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if got := w.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("content type = %q", got)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "bytelense-u1-week-2026-03-09.xlsx") {
		t.Errorf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(w.Body.String(), "PK") {
		t.Error("body is not a zip container")
	}
}

func TestProfileRoutes(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	if w := do(r, http.MethodGet, "/v1/users/u1/profile", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing profile status = %d", w.Code)
	}

	w := do(r, http.MethodPut, "/v1/users/u1/profile", `{"allergens":["milk"],"daily_targets":{"calories":1800,"sugar":40}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", w.Code, w.Body)
	}
	var p entity.UserProfile
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.User != "u1" || p.DailyTargets[constants.Sugar] != 40 {
		t.Errorf("profile = %+v", p)
	}

	if w := do(r, http.MethodPut, "/v1/users/u1/profile", `{"daily_targets":{"sugar":-1}}`); w.Code != http.StatusBadRequest {
		t.Errorf("negative target status = %d", w.Code)
	}
	if w := do(r, http.MethodPut, "/v1/users/u1/profile", `{not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", w.Code)
	}
}

func TestScanRoute(t *testing.T) {
	r, _ := newTestRouter(t, nil, nil)
	w := do(r, http.MethodPost, "/v1/users/u1/scans", `{"raw_text":"Energy 100 kcal"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var a entity.DetailedAssessment
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	if a.User != "u1" || a.Verdict != constants.VerdictGood {
		t.Errorf("assessment = %+v", a)
	}

	failing, _ := newTestRouter(t, common.NewExtractionFailure(nil), nil)
	w = do(failing, http.MethodPost, "/v1/users/u1/scans", `{"image_path":"x.jpg"}`)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "extraction_failure") {
		t.Errorf("status = %d body = %s", w.Code, w.Body)
	}
}
