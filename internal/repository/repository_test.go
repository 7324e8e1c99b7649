package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

func tempDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: "file:" + path}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func stores(t *testing.T) map[string]DocumentStore {
	return map[string]DocumentStore{
		"sqlite": NewDocumentStore(tempDB(t), nil),
		"memory": NewMemoryStore(),
	}
}

func TestDocumentStoreGetPutRange(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "c", "missing"); !errors.Is(err, common.ErrNotFound) {
				t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
			}
			for _, k := range []string{"u|2025-03-09", "u|2025-03-10", "u|2025-03-11", "v|2025-03-10"} {
				if err := s.Put(ctx, "c", k, []byte(`{"k":"`+k+`"}`)); err != nil {
					t.Fatalf("Put %s: %v", k, err)
				}
			}
			if err := s.Put(ctx, "c", "u|2025-03-10", []byte(`{"v":2}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, err := s.Get(ctx, "c", "u|2025-03-10")
			if err != nil {
				t.Fatal(err)
			}
			if string(got.Body) != `{"v":2}` {
				t.Fatalf("overwrite not applied: %s", got.Body)
			}
			docs, err := s.Range(ctx, "c", "u|2025-03-10", "u|2025-03-16")
			if err != nil {
				t.Fatal(err)
			}
			if len(docs) != 2 || docs[0].Key != "u|2025-03-10" || docs[1].Key != "u|2025-03-11" {
				t.Fatalf("Range = %+v", docs)
			}
			if _, err := s.Get(ctx, "other", "u|2025-03-10"); !errors.Is(err, common.ErrNotFound) {
				t.Fatalf("collections must be isolated, err = %v", err)
			}
		})
	}
}

func TestLedgerRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(NewDocumentStore(tempDB(t), nil), nil)

	if _, ok, err := repo.GetDay(ctx, "ana", "2025-03-10"); err != nil || ok {
		t.Fatalf("GetDay empty: ok=%v err=%v", ok, err)
	}

	entry := entity.DailyLedgerEntry{
		Date: "2025-03-10",
		User: "ana",
		Records: []entity.ConsumptionRecord{{
			ScanID:           "s1",
			Timestamp:        time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
			ServingsConsumed: 1,
			Nutrition: entity.NutritionRecord{
				Name:       "Oats",
				PerServing: entity.Nutrients{constants.Sugar: 1, constants.Calories: 150},
			},
			Verdict: constants.VerdictGood,
		}},
		Totals: entity.Nutrients{constants.Sugar: 1, constants.Calories: 150},
	}
	if err := repo.PutDay(ctx, entry); err != nil {
		t.Fatal(err)
	}
	got, ok, err := repo.GetDay(ctx, "ana", "2025-03-10")
	if err != nil || !ok {
		t.Fatalf("GetDay: ok=%v err=%v", ok, err)
	}
	if len(got.Records) != 1 || got.Records[0].Nutrition.PerServing[constants.Calories] != 150 {
		t.Fatalf("unexpected entry: %+v", got)
	}

	days, err := repo.ListDays(ctx, "ana", "2025-03-10", "2025-03-16")
	if err != nil || len(days) != 1 {
		t.Fatalf("ListDays = %v, %v", days, err)
	}
	if days, _ := repo.ListDays(ctx, "bob", "2025-03-10", "2025-03-16"); len(days) != 0 {
		t.Fatalf("other user leaked: %v", days)
	}
}

func TestLedgerRepositoryRejectsBadKeys(t *testing.T) {
	repo := NewLedgerRepository(NewMemoryStore(), nil)
	err := repo.PutDay(context.Background(), entity.DailyLedgerEntry{User: "ana", Date: "10/03/2025"})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository(NewDocumentStore(tempDB(t), nil), nil)
	if _, err := repo.GetProfile(ctx, "ana"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing profile: err = %v", err)
	}
	p := entity.UserProfile{
		User:         "ana",
		Allergens:    []string{"peanut"},
		DailyTargets: entity.Nutrients{constants.Sugar: 50},
	}
	if err := repo.PutProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetProfile(ctx, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if got.Allergens[0] != "peanut" || got.DailyTargets[constants.Sugar] != 50 {
		t.Fatalf("got %+v", got)
	}
	if _, err := repo.GetProfile(ctx, " "); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("blank user: err = %v", err)
	}
}
