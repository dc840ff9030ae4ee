package service

import (
	"context"
	"fmt"

	"mold_monitor"
	"mold_monitor/internal/acquisition"
	"mold_monitor/internal/config"
	"mold_monitor/internal/logger"
)

// SourceFactory opens the acquisition source for a session. descs is the
// channel layout of the active profile, in channel-index order.
type SourceFactory func(ctx context.Context, p *config.Profile, descs []mold_monitor.ChannelDescriptor) (acquisition.Source, error)

// NewSourceFactory picks the simulator or the OPC UA gateway from cfg.
func NewSourceFactory(cfg config.AcquisitionConfig, log *logger.Logger) SourceFactory {
	log = logger.OrNop(log)
	return func(ctx context.Context, p *config.Profile, descs []mold_monitor.ChannelDescriptor) (acquisition.Source, error) {
		switch cfg.Source {
		case config.SourceSimulator, "":
			sim := cfg.Simulator
			return acquisition.NewSimulator(acquisition.SimulatorConfig{
				Period:     p.SamplePeriod(),
				CycleTime:  sim.CycleTime,
				ShotTime:   sim.ShotTime,
				MeltC:      sim.MeltC,
				PeakBar:    sim.PeakBar,
				NoiseCodes: sim.NoiseCodes,
				Seed:       sim.Seed,
				Paced:      true,
			}, descs)

		case config.SourceOPCUA:
			src, err := acquisition.NewOPCUASource(cfg.OPCUA, len(descs), log.Named("opcua"))
			if err != nil {
				return nil, err
			}
			if err := src.Connect(ctx); err != nil {
				return nil, err
			}
			return src, nil

		default:
			return nil, fmt.Errorf("unknown acquisition source %q", cfg.Source)
		}
	}
}
