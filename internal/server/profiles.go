package server

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/profiles"
)

// GetProfile returns the stored profile.
func (s *ScanServer) GetProfile(ctx context.Context, req ProfileRequest) (entity.UserProfile, error) {
	user := strings.TrimSpace(req.User)
	if user == "" {
		return entity.UserProfile{}, common.InvalidArgumentError("user is required")
	}
	return s.profiles.GetProfile(ctx, user)
}

// PutProfile creates or replaces a profile.
func (s *ScanServer) PutProfile(ctx context.Context, req PutProfileRequest) (entity.UserProfile, error) {
	// Convert gRPC request to service request
	p, err := s.profiles.Upsert(ctx, profiles.UpsertProfileRequest{
		User:         req.User,
		Name:         req.Name,
		Allergens:    req.Allergens,
		DailyTargets: req.DailyTargets,
		Goals:        req.Goals,
		Demographics: req.Demographics,
		Lifestyle:    req.Lifestyle,
	})
	if err != nil {
		return entity.UserProfile{}, err
	}
	s.logger.Info("profile saved", "user", p.User, "allergens", len(p.Allergens))
	return p, nil
}
