package profiles

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/repository"
)

// Service handles profile business logic.
type Service struct {
	profileRepo repository.ProfileRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new profile service.
func NewService(profileRepo repository.ProfileRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{profileRepo: profileRepo, logger: logger, now: time.Now}
}

// UpsertProfileRequest carries the user-editable profile fields.
type UpsertProfileRequest struct {
	User         string
	Name         string
	Allergens    []string
	DailyTargets entity.Nutrients
	Goals        entity.Goals
	Demographics *entity.Demographics
	Lifestyle    *entity.Lifestyle
}

// Upsert validates and stores a profile. Targets are computed from
// demographics when the request gives none.
func (s *Service) Upsert(ctx context.Context, req UpsertProfileRequest) (entity.UserProfile, error) {
	v := common.NewValidator().
		Field("user", req.User, common.Required, common.MaxLength(128)).
		Field("name", req.Name, common.MaxLength(128))
	if d := req.Demographics; d != nil {
		v.Field("demographics.height_cm", d.HeightCm, common.InRange(50, 272)).
			Field("demographics.weight_kg", d.WeightKg, common.InRange(20, 400)).
			Field("demographics.age", float64(d.Age), common.InRange(13, 120))
	}
	for k, t := range req.DailyTargets {
		v.Field("daily_targets."+string(k), t, common.Positive)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Warn("profile.upsert.invalid", "user", req.User, "error", v.ErrorMessage())
		return entity.UserProfile{}, err
	}

	user := strings.TrimSpace(req.User)
	now := s.now().UTC()
	p := entity.UserProfile{
		User:         user,
		Name:         strings.TrimSpace(req.Name),
		Allergens:    cleanList(req.Allergens),
		DailyTargets: req.DailyTargets.Clone(),
		Goals:        req.Goals,
		Demographics: req.Demographics,
		Lifestyle:    req.Lifestyle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if existing, err := s.profileRepo.GetProfile(ctx, user); err == nil {
		p.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, common.ErrNotFound) {
		return entity.UserProfile{}, common.InternalErrorf("load profile: %v", err)
	}

	if p.Demographics != nil {
		l := entity.Lifestyle{}
		if p.Lifestyle != nil {
			l = *p.Lifestyle
		}
		metrics, targets := ComputeTargets(*p.Demographics, l, p.Goals)
		p.Metrics = &metrics
		if len(p.DailyTargets) == 0 {
			p.DailyTargets = targets
		}
	}
	if len(p.DailyTargets) == 0 {
		p.DailyTargets = TargetsFromCalories(defaultCalories, p.Goals.FitnessGoal, "")
	}

	if err := s.profileRepo.PutProfile(ctx, p); err != nil {
		return entity.UserProfile{}, common.InternalErrorf("save profile: %v", err)
	}
	s.logger.Info("profile upserted successfully", "user", p.User, "targets", len(p.DailyTargets))
	return p, nil
}

// GetProfile is the read-only profile store used by scans.
func (s *Service) GetProfile(ctx context.Context, user string) (entity.UserProfile, error) {
	return s.profileRepo.GetProfile(ctx, user)
}

func cleanList(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
