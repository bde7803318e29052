package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericogr/krembot-to-mqtt/pkg/config"
	"github.com/ericogr/krembot-to-mqtt/pkg/output"
	"github.com/ericogr/krembot-to-mqtt/pkg/output/console"
	mqttout "github.com/ericogr/krembot-to-mqtt/pkg/output/mqtt"
	"github.com/ericogr/krembot-to-mqtt/pkg/sensor"
)

const fallbackIntervalMs = 1000

type outputEntry struct {
	Output      output.Output
	Type        string
	IntervalMs  int
	lastPublish time.Time
}

func main() {
	fmt.Println("starting...")

	cfg, err := config.LoadFromFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("config: %v", err)
	}

	s, err := newSensor(cfg)
	if err != nil {
		log.Fatalf("sensor: %v", err)
	}

	interval := computeSensorInterval(cfg)
	outputs, err := initOutputs(&cfg, cfg.IntervalMs)
	if err != nil {
		_ = s.Close()
		log.Fatalf("outputs: %v", err)
	}
	log.Printf("sensor=%s interval=%dms outputs=%d", cfg.SensorType, interval, len(outputs))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			log.Printf("shutting down")
			shutdown(s, outputs)
			return
		case now := <-ticker.C:
			poll(s, outputs, now)
		}
	}
}

func newSensor(cfg config.Config) (sensor.Sensor, error) {
	switch cfg.SensorType {
	case config.SensorSimulation:
		return sensor.NewFakeSensor(cfg)
	case config.SensorReal, "":
		return sensor.NewKrembotSensor(cfg)
	default:
		return nil, fmt.Errorf("unknown sensor type %q", cfg.SensorType)
	}
}

// poll reads the sensor once and hands the reading to every output whose
// interval has elapsed. Reading every tick keeps the battery filter fed even
// when no output is due.
func poll(s sensor.Sensor, outputs []outputEntry, now time.Time) {
	r, err := s.Read()
	if err != nil {
		log.Printf("read error: %v", err)
		return
	}
	for i := range outputs {
		o := &outputs[i]
		if !o.lastPublish.IsZero() && now.Sub(o.lastPublish) < time.Duration(o.IntervalMs)*time.Millisecond {
			continue
		}
		o.lastPublish = now
		if err := o.Output.Publish(r); err != nil {
			log.Printf("[%s] publish error: %v", o.Type, err)
		}
	}
}

func shutdown(s sensor.Sensor, outputs []outputEntry) {
	for _, o := range outputs {
		if err := o.Output.Close(); err != nil {
			log.Printf("[%s] close error: %v", o.Type, err)
		}
	}
	if err := s.Close(); err != nil {
		log.Printf("sensor close error: %v", err)
	}
}

// initOutputs builds the configured outputs. Outputs without an interval
// take defaultInterval.
func initOutputs(cfg *config.Config, defaultInterval int) ([]outputEntry, error) {
	var entries []outputEntry
	for i := range cfg.Outputs {
		oc := &cfg.Outputs[i]
		if oc.IntervalMs <= 0 {
			oc.IntervalMs = defaultInterval
		}
		var o output.Output
		switch oc.Type {
		case config.OutputConsole:
			o = console.NewConsole()
		case config.OutputMQTT:
			var mc config.MQTTConfig
			if oc.MQTT != nil {
				mc = *oc.MQTT
			}
			var err error
			o, err = mqttout.NewMQTT(mc)
			if err != nil {
				closeAll(entries)
				return nil, err
			}
		default:
			closeAll(entries)
			return nil, fmt.Errorf("unknown output type %q", oc.Type)
		}
		entries = append(entries, outputEntry{Output: o, Type: oc.Type, IntervalMs: oc.IntervalMs})
	}
	return entries, nil
}

func closeAll(entries []outputEntry) {
	for _, e := range entries {
		_ = e.Output.Close()
	}
}

// computeSensorInterval returns the poll period in milliseconds: the
// shortest of the battery sample interval and the output intervals.
func computeSensorInterval(cfg config.Config) int {
	interval := 0
	consider := func(ms int) {
		if ms > 0 && (interval == 0 || ms < interval) {
			interval = ms
		}
	}
	if cfg.Battery.Enabled {
		consider(cfg.Battery.SampleIntervalMs)
	}
	for _, o := range cfg.Outputs {
		consider(o.IntervalMs)
	}
	if interval == 0 {
		interval = cfg.IntervalMs
	}
	if interval <= 0 {
		interval = fallbackIntervalMs
	}
	return interval
}
