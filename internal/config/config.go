// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config loads the emulator's configuration record, either from a
// flat KEY=VALUE file (for standalone CLI use) or by direct construction
// from a control-plane-decoded JSON body. It also exposes a process-wide
// singleton for the former.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config is the configuration record the engine consumes atomically on
// start/restart. It is never mutated in place once handed to the engine.
type Config struct {
	UDPHost string
	UDPPort int
	TCPHost string
	TCPPort int

	IntervalS     float64
	StartDatetime string // ISO-8601; empty means "use the real clock"
	Seed          int64  // 0 means "seed from the real clock"

	Lat, Lon, SOGKn, COGDeg, MagvarDeg float64

	WindEnabled bool
	TWSKn       float64
	TWDDeg      float64

	HeadingEnabled bool

	DepthEnabled     bool
	DepthM           float64
	DepthOffsetM     float64
	WaterTempEnabled bool
	WaterTempC       float64
	BatteryEnabled   bool
	BatteryV         float64
	AirTempEnabled   bool
	AirTempC         float64
	TanksEnabled     bool
	TankFreshWater   float64
	TankFuel         float64
	TankWaste        float64

	AISNumTargets           int
	AISMaxCOGOffsetDeg      float64
	AISMaxSOGOffsetKn       float64
	AISDistributionRadiusNM float64

	// GPXTrackPath, if set, is loaded and parsed by the control plane and
	// attached to the engine's Config as a parsed track; the config-file
	// loader here only carries the path, never the XML itself.
	GPXTrackPath     string
	GPXOffsetS       *float64
	GPXStartFraction *float64

	MQTTBroker string
}

// Package-level singleton, mirroring the producer/console binaries' shared
// config pattern: InitGlobal loads once, Get reads under RLock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config populated with the documented defaults.
func Defaults() *Config {
	return &Config{
		UDPHost:                 "127.0.0.1",
		UDPPort:                 10110,
		TCPHost:                 "0.0.0.0",
		TCPPort:                 10111,
		IntervalS:               1.0,
		MagvarDeg:               0,
		AISMaxCOGOffsetDeg:      20,
		AISMaxSOGOffsetKn:       2,
		AISDistributionRadiusNM: 1.0,
	}
}

// Load reads a flat KEY=VALUE configuration file, starting from Defaults(),
// and returns the populated Config.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setValue(key, value string) error {
	switch key {
	case "UDP_HOST":
		c.UDPHost = value
	case "UDP_PORT":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid UDP_PORT %q: %w", value, err)
		}
		c.UDPPort = v
	case "TCP_HOST":
		c.TCPHost = value
	case "TCP_PORT":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TCP_PORT %q: %w", value, err)
		}
		c.TCPPort = v

	case "INTERVAL_S":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid INTERVAL_S %q: %w", value, err)
		}
		if v <= 0 {
			return fmt.Errorf("INTERVAL_S must be > 0, got %v", v)
		}
		c.IntervalS = v
	case "START_DATETIME":
		c.StartDatetime = value
	case "SEED":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SEED %q: %w", value, err)
		}
		c.Seed = v

	case "LAT":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid LAT %q: %w", value, err)
		}
		if v < -90 || v > 90 {
			return fmt.Errorf("LAT must be in [-90,90], got %v", v)
		}
		c.Lat = v
	case "LON":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid LON %q: %w", value, err)
		}
		c.Lon = v
	case "SOG_KN":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SOG_KN %q: %w", value, err)
		}
		c.SOGKn = v
	case "COG_DEG":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid COG_DEG %q: %w", value, err)
		}
		c.COGDeg = v
	case "MAGVAR_DEG":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MAGVAR_DEG %q: %w", value, err)
		}
		c.MagvarDeg = v

	case "WIND_ENABLED":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid WIND_ENABLED %q: %w", value, err)
		}
		c.WindEnabled = v
	case "TWS_KN":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TWS_KN %q: %w", value, err)
		}
		c.TWSKn = v
	case "TWD_DEG":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TWD_DEG %q: %w", value, err)
		}
		c.TWDDeg = v

	case "HEADING_ENABLED":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid HEADING_ENABLED %q: %w", value, err)
		}
		c.HeadingEnabled = v

	case "DEPTH_ENABLED":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DEPTH_ENABLED %q: %w", value, err)
		}
		c.DepthEnabled = v
	case "DEPTH_M":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DEPTH_M %q: %w", value, err)
		}
		c.DepthM = v
	case "DEPTH_OFFSET_M":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DEPTH_OFFSET_M %q: %w", value, err)
		}
		c.DepthOffsetM = v
	case "WATER_TEMP_ENABLED":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid WATER_TEMP_ENABLED %q: %w", value, err)
		}
		c.WaterTempEnabled = v
	case "WATER_TEMP_C":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid WATER_TEMP_C %q: %w", value, err)
		}
		c.WaterTempC = v
	case "BATTERY_ENABLED":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid BATTERY_ENABLED %q: %w", value, err)
		}
		c.BatteryEnabled = v
	case "BATTERY_V":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BATTERY_V %q: %w", value, err)
		}
		c.BatteryV = v
	case "AIR_TEMP_ENABLED":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid AIR_TEMP_ENABLED %q: %w", value, err)
		}
		c.AirTempEnabled = v
	case "AIR_TEMP_C":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid AIR_TEMP_C %q: %w", value, err)
		}
		c.AirTempC = v
	case "TANKS_ENABLED":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid TANKS_ENABLED %q: %w", value, err)
		}
		c.TanksEnabled = v
	case "TANK_FRESH_WATER":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TANK_FRESH_WATER %q: %w", value, err)
		}
		c.TankFreshWater = v
	case "TANK_FUEL":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TANK_FUEL %q: %w", value, err)
		}
		c.TankFuel = v
	case "TANK_WASTE":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TANK_WASTE %q: %w", value, err)
		}
		c.TankWaste = v

	case "AIS_NUM_TARGETS":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid AIS_NUM_TARGETS %q: %w", value, err)
		}
		if v < 0 {
			return fmt.Errorf("AIS_NUM_TARGETS must be >= 0, got %d", v)
		}
		c.AISNumTargets = v
	case "AIS_MAX_COG_OFFSET":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid AIS_MAX_COG_OFFSET %q: %w", value, err)
		}
		c.AISMaxCOGOffsetDeg = v
	case "AIS_MAX_SOG_OFFSET":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid AIS_MAX_SOG_OFFSET %q: %w", value, err)
		}
		c.AISMaxSOGOffsetKn = v
	case "AIS_DISTRIBUTION_RADIUS_NM":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid AIS_DISTRIBUTION_RADIUS_NM %q: %w", value, err)
		}
		c.AISDistributionRadiusNM = v

	case "GPX_TRACK":
		c.GPXTrackPath = value
	case "GPX_OFFSET_S":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GPX_OFFSET_S %q: %w", value, err)
		}
		c.GPXOffsetS = &v
	case "GPX_START_FRACTION":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GPX_START_FRACTION %q: %w", value, err)
		}
		c.GPXStartFraction = &v

	case "MQTT_BROKER":
		c.MQTTBroker = value

	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Validate checks the invariants the engine's start()/restart() methods
// require before committing to a new configuration.
func (c *Config) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("config: LAT %v out of range [-90,90]", c.Lat)
	}
	if c.IntervalS <= 0 {
		return fmt.Errorf("config: INTERVAL_S must be > 0, got %v", c.IntervalS)
	}
	if c.GPXOffsetS != nil && c.GPXStartFraction != nil {
		return fmt.Errorf("config: GPX_OFFSET_S and GPX_START_FRACTION are mutually exclusive")
	}
	if c.AISNumTargets < 0 {
		return fmt.Errorf("config: AIS_NUM_TARGETS must be >= 0, got %d", c.AISNumTargets)
	}
	return nil
}

// InitGlobal loads configPath once into the process-wide singleton.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be called
// first, or this returns nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
