// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/marine_sim/internal/config"
	"github.com/relabs-tech/marine_sim/internal/controlplane"
	"github.com/relabs-tech/marine_sim/internal/engine"
	"github.com/relabs-tech/marine_sim/internal/gpx"
	"github.com/relabs-tech/marine_sim/internal/telemetry"
	"github.com/relabs-tech/marine_sim/internal/vessel"
)

func main() {
	configPath := flag.String("config", "marine_sim_config.txt", "path to the KEY=VALUE configuration file")
	httpAddr := flag.String("http", ":8180", "address for the control-plane HTTP/WebSocket API")
	serialPort := flag.String("serial-mirror", "", "optional serial device to mirror the emitted sentence stream onto (e.g. /dev/ttyUSB0)")
	serialBaud := flag.Uint("serial-baud", 4800, "baud rate for -serial-mirror")
	autostart := flag.Bool("autostart", true, "start the simulation immediately using the loaded config")
	flag.Parse()

	log.Println("starting marine_sim NMEA/AIS instrument emulator")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("loaded configuration from %s", *configPath)

	eng := engine.New(200)

	var hooks []func(line string)

	if cfg.MQTTBroker != "" {
		mirror, err := telemetry.Dial(cfg.MQTTBroker, "marine_sim-simctl", "marine_sim/nmea")
		if err != nil {
			log.Fatalf("failed to connect telemetry mirror: %v", err)
		}
		defer mirror.Close()
		hooks = append(hooks, mirror.Publish)
	}

	if *serialPort != "" {
		port, err := openSerialMirror(*serialPort, uint(*serialBaud))
		if err != nil {
			log.Fatalf("failed to open serial mirror %s: %v", *serialPort, err)
		}
		defer port.Close()
		hooks = append(hooks, func(line string) {
			if _, err := port.Write([]byte(line)); err != nil {
				log.Printf("serial mirror write error: %v", err)
			}
		})
		log.Printf("mirroring sentence stream onto serial port %s at %d baud", *serialPort, *serialBaud)
	}

	if len(hooks) > 0 {
		eng.SetLineHook(func(line string) {
			for _, h := range hooks {
				h(line)
			}
		})
	}

	srv := controlplane.NewServer(eng)
	httpServer := &http.Server{Addr: *httpAddr, Handler: srv.Handler()}

	go func() {
		log.Printf("control plane listening on %s", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("control plane HTTP server error: %v", err)
		}
	}()

	if *autostart {
		if err := startFromConfig(eng, cfg); err != nil {
			log.Fatalf("failed to start simulation: %v", err)
		}
		log.Println("simulation running; POST /api/stop or /api/restart to control it")
	} else {
		log.Println("autostart disabled; POST /api/start to begin")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down")
	eng.Stop(5 * time.Second)
}

func openSerialMirror(port string, baud uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial open: %w", err)
	}
	return p, nil
}

func startFromConfig(eng *engine.Engine, cfg *config.Config) error {
	engCfg, err := buildEngineConfigForMain(cfg)
	if err != nil {
		return err
	}
	_, err = eng.Start(engCfg)
	return err
}

// buildEngineConfigForMain mirrors controlplane's config-to-engine
// translation for the CLI autostart path.
func buildEngineConfigForMain(c *config.Config) (engine.Config, error) {
	var startTime time.Time
	if c.StartDatetime != "" {
		t, err := time.Parse(time.RFC3339, c.StartDatetime)
		if err != nil {
			return engine.Config{}, fmt.Errorf("invalid start_datetime: %w", err)
		}
		startTime = t
	}

	var track *gpx.Track
	if c.GPXTrackPath != "" {
		f, err := os.Open(c.GPXTrackPath)
		if err != nil {
			return engine.Config{}, fmt.Errorf("opening gpx track: %w", err)
		}
		defer f.Close()
		track, err = gpx.Parse(f)
		if err != nil {
			return engine.Config{}, fmt.Errorf("parsing gpx track: %w", err)
		}
	}

	return engine.Config{
		UDPHost: c.UDPHost, UDPPort: c.UDPPort,
		TCPHost: c.TCPHost, TCPPort: c.TCPPort,
		IntervalS: c.IntervalS,
		StartTime: startTime,
		Seed:      c.Seed,
		Lat:       c.Lat, Lon: c.Lon, SOGKn: c.SOGKn, COGDeg: c.COGDeg, MagvarDeg: c.MagvarDeg,
		WindEnabled:      c.WindEnabled,
		TWSKn:            c.TWSKn,
		TWDDeg:           c.TWDDeg,
		HeadingEnabled:   c.HeadingEnabled,
		DepthEnabled:     c.DepthEnabled,
		DepthM:           c.DepthM,
		DepthOffsetM:     c.DepthOffsetM,
		WaterTempEnabled: c.WaterTempEnabled,
		WaterTempC:       c.WaterTempC,
		BatteryEnabled:   c.BatteryEnabled,
		BatteryV:         c.BatteryV,
		AirTempEnabled:   c.AirTempEnabled,
		AirTempC:         c.AirTempC,
		TanksEnabled:     c.TanksEnabled,
		TankFreshWater:   c.TankFreshWater,
		TankFuel:         c.TankFuel,
		TankWaste:        c.TankWaste,
		AIS: vessel.ContactConfig{
			NumTargets:           c.AISNumTargets,
			MaxCOGOffsetDeg:      c.AISMaxCOGOffsetDeg,
			MaxSOGOffsetKn:       c.AISMaxSOGOffsetKn,
			DistributionRadiusNM: c.AISDistributionRadiusNM,
		},
		GPXTrack:         track,
		GPXOffsetS:       c.GPXOffsetS,
		GPXStartFraction: c.GPXStartFraction,
	}, nil
}
