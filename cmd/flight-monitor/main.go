// Command flight-monitor runs the vehicle's wind failsafe, sequence counters
// and status indicator at a fixed tick rate, fed by vehicle state over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/flight-monitor/internal/config"
	"github.com/sweeney/flight-monitor/internal/flightlog"
	"github.com/sweeney/flight-monitor/internal/gpio"
	"github.com/sweeney/flight-monitor/internal/logic"
	"github.com/sweeney/flight-monitor/internal/mqtt"
	"github.com/sweeney/flight-monitor/internal/params"
	"github.com/sweeney/flight-monitor/internal/status"
	"github.com/sweeney/flight-monitor/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/flight-monitor/config.yaml", "Path to the YAML config file")
	printCounters := flag.Bool("print-counters", false, "Print the persisted sequence counters and exit")

	flag.Parse()

	if err := run(*configPath, *printCounters); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, printCounters bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := params.Open(params.Config{Path: cfg.Params.Path})
	if err != nil {
		return fmt.Errorf("open param store: %w", err)
	}
	defer store.Close()

	// Print counters mode
	if printCounters {
		fmt.Printf("%s: %d, %s: %d\n",
			logic.ParamDisarmSeqNum, store.Int16(logic.ParamDisarmSeqNum),
			logic.ParamFlightSeqNum, store.Int16(logic.ParamFlightSeqNum))
		return nil
	}

	indicator, err := openIndicator(cfg.Indicator)
	if err != nil {
		return err
	}
	defer indicator.Close()

	var (
		recorder  flightlog.Recorder
		logReader web.LogReader
	)
	if cfg.FlightLog.Path != "" {
		fl, err := flightlog.New(cfg.FlightLog.Path)
		if err != nil {
			return fmt.Errorf("open flight log: %w", err)
		}
		defer fl.Close()
		recorder, logReader = fl, fl
	}

	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BaseTopic:  cfg.BaseTopic(),
		BufferSize: cfg.MQTT.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		VehicleID:    cfg.VehicleID,
		TickMs:       cfg.Tick.Milliseconds(),
		HeartbeatMs:  cfg.Heartbeat.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		MaxWindSpeed: cfg.Wind.MaxSpeed,
		Toggle:       cfg.Indicator.Toggle,
		Indicator:    cfg.Indicator.Enabled,
		HTTPAddr:     cfg.HTTP.Addr,
	})
	tracker.SetMQTTConnected(client.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(web.Options{Addr: cfg.HTTP.Addr, Tracker: tracker, FlightLog: logReader})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	tun := newTunables(cfg.Wind.MaxSpeed, cfg.Indicator.Toggle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		err := config.Watch(ctx, configPath, func(c *config.Config) {
			tun.set(c.Wind.MaxSpeed, c.Indicator.Toggle)
			tracker.SetTunables(c.Wind.MaxSpeed, c.Indicator.Toggle)
			log.Printf("config: applied max_wind=%.1f toggle=%d", c.Wind.MaxSpeed, c.Indicator.Toggle)
		})
		if err != nil {
			log.Printf("config: watch stopped: %v", err)
		}
	}()

	log.Printf("started: vehicle=%s tick=%v broker=%s topic=%s heartbeat=%v max_wind=%.1f indicator=%v",
		cfg.VehicleID, cfg.Tick, cfg.MQTT.Broker, cfg.BaseTopic(), cfg.Heartbeat, cfg.Wind.MaxSpeed, cfg.Indicator.Enabled)

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		source:     client,
		publisher:  client,
		mqttStatus: client,
		store:      store,
		setter:     store,
		indicator:  indicator,
		recorder:   recorder,
		keepWind:   cfg.FlightLog.MaxWindRecords,
		tracker:    tracker,
		tunables:   tun,
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
	}, ticker.C, sigCh)
}

func openIndicator(cfg config.IndicatorConfig) (gpio.Indicator, error) {
	if !cfg.Enabled {
		return gpio.NoopIndicator{}, nil
	}
	w, err := gpio.NewRealWriter(cfg.Chip, cfg.RedPin, cfg.GreenPin)
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	return gpio.NewPinIndicator(w), nil
}
