package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mold_monitor/internal/config"
	"mold_monitor/internal/logger"
	"mold_monitor/internal/repository"
	"mold_monitor/internal/segmenter"
)

var (
	ErrEmptyProfile   = errors.New("profile body is empty")
	ErrInvalidProfile = errors.New("invalid profile")
)

// ProfileService keeps the active mold profile. A stored profile wins over
// the one the process was started with.
type ProfileService struct {
	repo     repository.ProfileRepo
	fallback *config.Profile
	log      *logger.Logger

	// busy reports whether a session is running; the profile is frozen then.
	busy func() bool
}

func NewProfileService(repo repository.ProfileRepo, fallback *config.Profile, log *logger.Logger) *ProfileService {
	if fallback == nil {
		fallback = config.DefaultProfile()
	}
	return &ProfileService{repo: repo, fallback: fallback, log: logger.OrNop(log)}
}

func (s *ProfileService) Active(ctx context.Context) (*config.Profile, error) {
	stored, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored.YAML) == 0 {
		return s.fallback, nil
	}
	p, err := config.ParseProfile(stored.YAML)
	if err != nil {
		return nil, fmt.Errorf("stored profile %q: %w", stored.Name, err)
	}
	return p, nil
}

// Put validates raw (YAML or JSON) and makes it the active profile. The
// channel configuration cannot change while a session runs.
func (s *ProfileService) Put(ctx context.Context, raw []byte) (*config.Profile, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyProfile
	}
	if s.busy != nil && s.busy() {
		return nil, ErrSessionRunning
	}
	p, err := checkProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	out, err := p.YAML()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, repository.StoredProfile{
		Name:      p.Name,
		YAML:      out,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	s.log.Infow("profile_saved", "name", p.Name, "channels", len(p.Channels))
	return p, nil
}

func checkProfile(raw []byte) (*config.Profile, error) {
	p, err := config.ParseProfile(raw)
	if err != nil {
		return nil, err
	}
	if err := VerifyProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// VerifyProfile builds what a session would build from p; registry and
// trigger resolution catch what field validation cannot.
func VerifyProfile(p *config.Profile) error {
	reg, err := p.Registry()
	if err != nil {
		return err
	}
	_, _, _, err = segmenter.Resolve(reg, p.TriggerPolicy())
	return err
}
