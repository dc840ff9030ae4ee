package service

import (
	"context"
	"errors"
	"testing"

	"mold_monitor/internal/config"
	"mold_monitor/internal/repository"
	"mold_monitor/internal/segmenter"
)

func TestProfileService_ActiveFallsBackUntilStored(t *testing.T) {
	repo := &memProfileRepo{}
	svc := NewProfileService(repo, nil, nil)

	p, err := svc.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if p.Name != config.DefaultProfile().Name || len(p.Channels) != 5 {
		t.Fatalf("expected the default profile, got %+v", p)
	}

	repo.stored = repository.StoredProfile{Name: "bench", YAML: []byte(benchProfileYAML)}
	p, err = svc.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if p.Name != "bench" || len(p.Channels) != 2 {
		t.Fatalf("expected the stored profile, got %+v", p)
	}
}

func TestProfileService_ActiveRejectsCorruptStoredProfile(t *testing.T) {
	repo := &memProfileRepo{stored: repository.StoredProfile{Name: "broken", YAML: []byte("channels: [")}}
	svc := NewProfileService(repo, nil, nil)
	if _, err := svc.Active(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestVerifyProfile(t *testing.T) {
	if err := VerifyProfile(config.DefaultProfile()); err != nil {
		t.Fatalf("default profile rejected: %v", err)
	}
	if err := VerifyProfile(benchProfile(t)); err != nil {
		t.Fatalf("bench profile rejected: %v", err)
	}

	// parses, but the dedicated trigger it asks for is not in the layout
	p, err := config.ParseProfile([]byte("channels: [{input: 0, type: T}]\n"))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if err := VerifyProfile(p); !errors.Is(err, segmenter.ErrNoTrigger) {
		t.Fatalf("expected ErrNoTrigger, got %v", err)
	}
}

func TestProfileService_Put(t *testing.T) {
	t.Run("stores a valid profile", func(t *testing.T) {
		repo := &memProfileRepo{}
		svc := NewProfileService(repo, nil, nil)

		p, err := svc.Put(context.Background(), []byte(benchProfileYAML))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if p.Name != "bench" || repo.saves != 1 || repo.stored.Name != "bench" {
			t.Fatalf("profile not stored: saves=%d stored=%q", repo.saves, repo.stored.Name)
		}
		// the stored form parses back to the same layout
		back, err := config.ParseProfile(repo.stored.YAML)
		if err != nil {
			t.Fatalf("stored YAML does not parse: %v", err)
		}
		if back.Trigger.DebounceMS != 5 || back.SampleRateHz != 1000 {
			t.Fatalf("stored profile lost settings: %+v", back.Trigger)
		}
	})

	t.Run("accepts JSON", func(t *testing.T) {
		svc := NewProfileService(&memProfileRepo{}, nil, nil)
		raw := `{"name":"json","channels":[{"input":0,"type":"P","calibration_set":"a"},{"input":1,"type":"I"}],` +
			`"pressure_sets":{"a":{"full_scale":2000}},"trigger":{"channel":-1}}`
		if _, err := svc.Put(context.Background(), []byte(raw)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	})

	t.Run("rejected while a session runs", func(t *testing.T) {
		repo := &memProfileRepo{}
		svc := NewProfileService(repo, nil, nil)
		svc.busy = func() bool { return true }
		if _, err := svc.Put(context.Background(), []byte(benchProfileYAML)); !errors.Is(err, ErrSessionRunning) {
			t.Fatalf("expected ErrSessionRunning, got %v", err)
		}
		if repo.saves != 0 {
			t.Fatal("profile must not be saved")
		}
	})

	t.Run("invalid profiles", func(t *testing.T) {
		cases := map[string]string{
			"unknown type":       "channels: [{input: 0, type: X}]",
			"no trigger channel": "channels: [{input: 0, type: T}]",
			"missing set":        "channels: [{input: 0, type: P, calibration_set: nope}, {input: 1, type: I}]",
			"bad yaml":           "channels: [",
		}
		for name, raw := range cases {
			t.Run(name, func(t *testing.T) {
				svc := NewProfileService(&memProfileRepo{}, nil, nil)
				if _, err := svc.Put(context.Background(), []byte(raw)); !errors.Is(err, ErrInvalidProfile) {
					t.Fatalf("expected ErrInvalidProfile, got %v", err)
				}
			})
		}
	})

	t.Run("empty body", func(t *testing.T) {
		svc := NewProfileService(&memProfileRepo{}, nil, nil)
		if _, err := svc.Put(context.Background(), nil); !errors.Is(err, ErrEmptyProfile) {
			t.Fatalf("expected ErrEmptyProfile, got %v", err)
		}
	})

	t.Run("repository error", func(t *testing.T) {
		repo := &memProfileRepo{saveErr: errors.New("locked")}
		svc := NewProfileService(repo, nil, nil)
		if _, err := svc.Put(context.Background(), []byte(benchProfileYAML)); err == nil || errors.Is(err, ErrInvalidProfile) {
			t.Fatalf("expected repository error, got %v", err)
		}
	})
}
