package config

import (
	"context"
	"strconv"
	"time"

	"downshot/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	// Mission
	MissionAltitude(ctx context.Context) float64
	SettleDelay(ctx context.Context) time.Duration
	MissionTimeout(ctx context.Context) time.Duration
	ResetTimeline(ctx context.Context) bool

	// Vehicle
	VehicleProvider(ctx context.Context) string
	SimStartLat(ctx context.Context) float64
	SimStartLon(ctx context.Context) float64
	SimStartHeading(ctx context.Context) float64

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Implementations ---

func (p *UnifiedProvider) MissionAltitude(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMissionAltitude, float64(p.base.Mission.Altitude))
}

func (p *UnifiedProvider) SettleDelay(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeySettleDelay, time.Duration(p.base.Mission.SettleDelay))
}

func (p *UnifiedProvider) MissionTimeout(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyMissionTimeout, time.Duration(p.base.Mission.Timeout))
}

func (p *UnifiedProvider) ResetTimeline(ctx context.Context) bool {
	return p.getBool(ctx, KeyResetTimeline, p.base.Mission.ResetTimeline)
}

func (p *UnifiedProvider) VehicleProvider(ctx context.Context) string {
	fallback := p.base.Vehicle.Provider
	if fallback == "" {
		fallback = "sim"
	}
	return p.getString(ctx, KeyVehicleProvider, fallback)
}

func (p *UnifiedProvider) SimStartLat(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeySimLat, p.base.Vehicle.Sim.StartLat)
}

func (p *UnifiedProvider) SimStartLon(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeySimLon, p.base.Vehicle.Sim.StartLon)
}

func (p *UnifiedProvider) SimStartHeading(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeySimHeading, p.base.Vehicle.Sim.StartHeading)
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil {
				return dur
			}
		}
	}
	return fallback
}
