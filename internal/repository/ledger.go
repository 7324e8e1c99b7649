package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

const ledgerCollection = "ledger_days"

// LedgerRepository persists one document per user per ISO date.
type LedgerRepository interface {
	GetDay(ctx context.Context, user, day string) (entity.DailyLedgerEntry, bool, error)
	PutDay(ctx context.Context, entry entity.DailyLedgerEntry) error
	ListDays(ctx context.Context, user, from, to string) ([]entity.DailyLedgerEntry, error)
}

type ledgerRepository struct {
	docs   DocumentStore
	logger *slog.Logger
}

func NewLedgerRepository(docs DocumentStore, logger *slog.Logger) LedgerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerRepository{docs: docs, logger: logger}
}

func ledgerKey(user, day string) string {
	return user + "|" + day
}

func (r *ledgerRepository) GetDay(ctx context.Context, user, day string) (entity.DailyLedgerEntry, bool, error) {
	doc, err := r.docs.Get(ctx, ledgerCollection, ledgerKey(user, day))
	if errors.Is(err, common.ErrNotFound) {
		return entity.DailyLedgerEntry{}, false, nil
	}
	if err != nil {
		return entity.DailyLedgerEntry{}, false, err
	}
	var entry entity.DailyLedgerEntry
	if err := json.Unmarshal(doc.Body, &entry); err != nil {
		r.logger.Error("ledger.decode.failed", "user", user, "day", day, "err", err)
		return entity.DailyLedgerEntry{}, false, fmt.Errorf("decode ledger %s/%s: %w", user, day, err)
	}
	return entry, true, nil
}

func (r *ledgerRepository) PutDay(ctx context.Context, entry entity.DailyLedgerEntry) error {
	v := common.NewValidator().
		Field("user", entry.User, common.Required).
		Field("date", entry.Date, common.ISODate)
	if err := v.Error(); err != nil {
		return err
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return r.docs.Put(ctx, ledgerCollection, ledgerKey(entry.User, entry.Date), body)
}

func (r *ledgerRepository) ListDays(ctx context.Context, user, from, to string) ([]entity.DailyLedgerEntry, error) {
	docs, err := r.docs.Range(ctx, ledgerCollection, ledgerKey(user, from), ledgerKey(user, to))
	if err != nil {
		return nil, err
	}
	out := make([]entity.DailyLedgerEntry, 0, len(docs))
	for _, d := range docs {
		var entry entity.DailyLedgerEntry
		if err := json.Unmarshal(d.Body, &entry); err != nil {
			r.logger.Error("ledger.decode.failed", "key", d.Key, "err", err)
			return nil, fmt.Errorf("decode ledger %s: %w", d.Key, err)
		}
		out = append(out, entry)
	}
	return out, nil
}
