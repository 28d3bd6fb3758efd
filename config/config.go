// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads a sentrytx.Config and the supporting CLI/server
// settings from a viper-backed YAML file. Load accepts an explicit path
// rather than probing a home-directory dotfile: a rule-engine deployment
// config travels with the deployment, not the developer.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/whitaker-io/sentrytx"
)

const (
	coreKey      = "core"
	serverKey    = "server"
	storeKey     = "store"
	telemetryKey = "telemetry"
)

// ServerConfig holds cmd/sentryd's admin-server settings (/health,
// /reload, /stats).
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig selects and configures the external store. An empty Addr
// means use the in-process store.
type StoreConfig struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`
}

// TelemetryConfig configures the sentrytx/telemetry Recorder: its otel
// service name plus an optional non-blocking Kafka sink.
type TelemetryConfig struct {
	ServiceName  string   `mapstructure:"service_name"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// File is the top-level shape of a sentryd configuration file.
type File struct {
	Core      sentrytx.Config `mapstructure:"-"`
	Server    ServerConfig
	Store     StoreConfig
	Telemetry TelemetryConfig
}

// Load reads path (any format viper supports: YAML, TOML, JSON) and
// unmarshals its core/server/store/telemetry sections. Missing sections
// fall back to sentrytx.DefaultConfig()/zero values.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	f := &File{Core: sentrytx.DefaultConfig()}
	if err := v.UnmarshalKey(coreKey, &f.Core); err != nil {
		return nil, fmt.Errorf("config: unmarshalling %s: %w", coreKey, err)
	}
	if err := v.UnmarshalKey(serverKey, &f.Server); err != nil {
		return nil, fmt.Errorf("config: unmarshalling %s: %w", serverKey, err)
	}
	if err := v.UnmarshalKey(storeKey, &f.Store); err != nil {
		return nil, fmt.Errorf("config: unmarshalling %s: %w", storeKey, err)
	}
	if err := v.UnmarshalKey(telemetryKey, &f.Telemetry); err != nil {
		return nil, fmt.Errorf("config: unmarshalling %s: %w", telemetryKey, err)
	}
	if f.Server.Addr == "" {
		f.Server.Addr = ":5000"
	}
	return f, nil
}
