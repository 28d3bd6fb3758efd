// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/whitaker-io/sentrytx"
	"github.com/whitaker-io/sentrytx/action"
	"github.com/whitaker-io/sentrytx/config"
	"github.com/whitaker-io/sentrytx/operator"
	"github.com/whitaker-io/sentrytx/script"
	"github.com/whitaker-io/sentrytx/store"
	"github.com/whitaker-io/sentrytx/telemetry"

	"github.com/redis/go-redis/v9"
)

// otelMeter resolves a named Meter off the process-wide otel MeterProvider
// (a no-op by default; a host wiring a real SDK exporter calls
// otel.SetMeterProvider before Execute runs cmd/sentryd).
func otelMeter(serviceName string) metric.Meter {
	if serviceName == "" {
		serviceName = "sentrytx"
	}
	return otel.Meter(serviceName)
}

var rulesPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "load the rules file and run the admin server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&rulesPath, "rules", "sentryd.rules", "path to the rules file")
	rootCmd.AddCommand(serveCmd)
}

// buildEngine wires an Engine, its operator/action registries, a script
// host, the external store, and the telemetry Recorder together from
// cfg.
func buildEngine(cfg *config.File, log *logrus.Logger) (*sentrytx.Engine, *script.Host, error) {
	e := sentrytx.NewEngine(cfg.Core)

	if err := operator.Register(e.Operators); err != nil {
		return nil, nil, fmt.Errorf("registering operators: %w", err)
	}
	if err := action.Register(e.Actions); err != nil {
		return nil, nil, fmt.Errorf("registering actions: %w", err)
	}

	var s store.Store
	if cfg.Store.Addr != "" {
		s = store.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.Store.Addr, DB: cfg.Store.DB}))
	} else {
		s = store.NewMem()
	}
	if err := action.RegisterRatelimit(e.Actions, s); err != nil {
		return nil, nil, fmt.Errorf("registering ratelimit action: %w", err)
	}

	var sink *telemetry.KafkaSink
	if len(cfg.Telemetry.KafkaBrokers) > 0 {
		sink = telemetry.NewKafkaSink(cfg.Telemetry.KafkaBrokers, cfg.Telemetry.KafkaTopic, 1024)
	}
	counters, err := telemetry.NewCounters(otelMeter(cfg.Telemetry.ServiceName))
	if err != nil {
		return nil, nil, fmt.Errorf("building telemetry counters: %w", err)
	}
	e.Recorder = telemetry.NewRecorder(log, counters, sink)

	host := script.NewHost("lua")
	return e, host, nil
}

// buildAndLoad builds a fresh Engine via buildEngine and parses rulesPath
// into it. /reload calls this again on demand; runServe calls it once at
// startup.
func buildAndLoad(cfg *config.File, log *logrus.Logger) (*sentrytx.Engine, error) {
	e, host, err := buildEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("opening rules file %s: %w", rulesPath, err)
	}
	defer f.Close()
	if err := loadRules(e, host, f); err != nil {
		return nil, err
	}
	return e, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logrus.New()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	e, err := buildAndLoad(cfg, log)
	if err != nil {
		return err
	}
	log.WithField("rules_file", rulesPath).Info("rules loaded")

	rebuild := func() (*sentrytx.Engine, error) { return buildAndLoad(cfg, log) }
	adm := newAdmin(e, log, rulesPath, rebuild)
	return adm.Run(cfg.Server.Addr)
}
