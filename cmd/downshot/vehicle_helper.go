package main

import (
	"context"
	"log/slog"
	"time"

	"downshot/pkg/config"
	"downshot/pkg/vehicle/simvehicle"
)

// simAppKey registers the simulator when no SDK key is configured.
const simAppKey = "downshot-sim"

func initializeVehicle(ctx context.Context, prov config.Provider) (*simvehicle.Vehicle, string) {
	cfg := prov.AppConfig()

	// Config validation only admits "sim" today.
	slog.Info("Vehicle Source: Simulator", "model", cfg.Vehicle.Model)
	sim := simvehicle.New(simvehicle.Config{
		Model:         cfg.Vehicle.Model,
		StartLat:      prov.SimStartLat(ctx),
		StartLon:      prov.SimStartLon(ctx),
		StartHeading:  prov.SimStartHeading(ctx),
		Speed:         cfg.Vehicle.Sim.Speed,
		ClimbRate:     cfg.Vehicle.Sim.ClimbRate,
		TelemetryRate: time.Duration(cfg.Vehicle.Sim.TelemetryRate),
	})

	appKey := cfg.Vehicle.AppKey
	if appKey == "" {
		slog.Warn("No SDK app key configured, using the simulator key")
		appKey = simAppKey
	}
	return sim, appKey
}
