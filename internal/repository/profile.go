package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

const profileCollection = "profiles"

type ProfileRepository interface {
	GetProfile(ctx context.Context, user string) (entity.UserProfile, error)
	PutProfile(ctx context.Context, profile entity.UserProfile) error
}

type profileRepository struct {
	docs   DocumentStore
	logger *slog.Logger
}

func NewProfileRepository(docs DocumentStore, logger *slog.Logger) ProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &profileRepository{docs: docs, logger: logger}
}

func (r *profileRepository) GetProfile(ctx context.Context, user string) (entity.UserProfile, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return entity.UserProfile{}, fmt.Errorf("user: %w", common.ErrInvalidInput)
	}
	doc, err := r.docs.Get(ctx, profileCollection, user)
	if err != nil {
		return entity.UserProfile{}, err
	}
	var p entity.UserProfile
	if err := json.Unmarshal(doc.Body, &p); err != nil {
		r.logger.Error("profile.decode.failed", "user", user, "err", err)
		return entity.UserProfile{}, fmt.Errorf("decode profile %s: %w", user, err)
	}
	return p, nil
}

func (r *profileRepository) PutProfile(ctx context.Context, p entity.UserProfile) error {
	if strings.TrimSpace(p.User) == "" {
		return fmt.Errorf("user: %w", common.ErrInvalidInput)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := r.docs.Put(ctx, profileCollection, p.User, body); err != nil {
		return err
	}
	r.logger.Info("profile.saved", "user", p.User)
	return nil
}
