// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"os"
	"time"

	"github.com/relabs-tech/accurate_clock/internal/clock"
	"github.com/relabs-tech/accurate_clock/internal/config"
	"github.com/relabs-tech/accurate_clock/internal/gps"
)

// RunMockConsole runs the engine in-process against the mock position feed
// and the configured time source, without a broker.
func RunMockConsole(ctx context.Context) error {
	cfg := config.Get()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	source, err := newTimeSource(cfg)
	if err != nil {
		return err
	}

	feed := gps.NewMockFeed(cfg.MockLatitude, cfg.MockLongitude)
	feed.Interval = config.Millis(cfg.MockIntervalMs)

	engine, err := clock.NewEngine(clock.Options{
		Feed:            feed,
		Source:          source,
		Location:        loc,
		FixTimeout:      config.Millis(cfg.GPSFixTimeoutMs),
		RefreshInterval: config.Millis(cfg.TimeRefreshIntervalMs),
		RequestTimeout:  config.Millis(cfg.TimeRequestTimeoutMs),
	})
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	return printReadings(ctx, os.Stdout, config.Millis(cfg.ConsoleLogInterval), func(time.Time) (clock.Reading, bool) {
		return engine.Read(), true
	})
}
