package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/next-exp/spectra_go/pkg/daq"
	"github.com/next-exp/spectra_go/pkg/engine"
)

type SimulatorConfiguration struct {
	Stream         string `json:"stream"`
	ChopperStream  string `json:"chopper_stream"`
	Spills         int    `json:"spills"`
	EventsPerSpill int    `json:"events_per_spill"`
	SpillLength    uint64 `json:"spill_length"`
	ChopperPeriod  uint64 `json:"chopper_period"`
	IntervalMs     int    `json:"interval_ms"`
	Seed           int64  `json:"seed"`
}

type Configuration struct {
	Verbosity     int                    `json:"verbosity"`
	ProjectFile   string                 `json:"project_file"`
	FileOut       string                 `json:"file_out"`
	NoDB          bool                   `json:"no_db"`
	RunNumber     int                    `json:"run_number"`
	Host          string                 `json:"host"`
	User          string                 `json:"user"`
	Passwd        string                 `json:"pass"`
	DBName        string                 `json:"dbname"`
	QueueCapacity int                    `json:"queue_capacity"`
	PopTimeoutMs  int                    `json:"pop_timeout_ms"`
	DurationS     float64                `json:"duration_s"`
	MetricsAddr   string                 `json:"metrics_addr"`
	Simulator     SimulatorConfiguration `json:"simulator"`
}

// LoadConfiguration reads filename over the defaults. An empty filename
// returns the defaults.
func LoadConfiguration(filename string) (Configuration, error) {
	var config Configuration

	// Set default values
	sim := engine.DefaultSimulatorConfig()
	config.Verbosity = 0
	config.FileOut = "spectra.h5"
	config.NoDB = true
	config.Host = "next.ific.uv.es"
	config.User = "nextreader"
	config.Passwd = "readonly"
	config.DBName = "NEXT100"
	config.QueueCapacity = 64
	config.PopTimeoutMs = 100
	config.Simulator = SimulatorConfiguration{
		Stream:         sim.Stream,
		ChopperStream:  sim.ChopperStream,
		Spills:         sim.Spills,
		EventsPerSpill: sim.EventsPerSpill,
		SpillLength:    sim.SpillLength,
		ChopperPeriod:  sim.ChopperPeriod,
		Seed:           sim.Seed,
	}

	if filename == "" {
		return config, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	if config.QueueCapacity < 1 {
		return config, fmt.Errorf("queue_capacity must be positive, got %d", config.QueueCapacity)
	}
	return config, nil
}

func (c Configuration) Duration() time.Duration {
	return time.Duration(c.DurationS * float64(time.Second))
}

func (c Configuration) SimulatorConfig() engine.SimulatorConfig {
	sim := engine.DefaultSimulatorConfig()
	sim.Stream = c.Simulator.Stream
	sim.ChopperStream = c.Simulator.ChopperStream
	sim.Spills = c.Simulator.Spills
	sim.EventsPerSpill = c.Simulator.EventsPerSpill
	sim.SpillLength = c.Simulator.SpillLength
	sim.ChopperPeriod = c.Simulator.ChopperPeriod
	sim.Interval = time.Duration(c.Simulator.IntervalMs) * time.Millisecond
	sim.Seed = c.Simulator.Seed
	return sim
}

func printConfiguration(config Configuration, logger daq.Logger) {
	logger.Info(fmt.Sprintf("Project file: %s", config.ProjectFile), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Queue capacity: %d", config.QueueCapacity), "config")
	logger.Info(fmt.Sprintf("Pop timeout: %d ms", config.PopTimeoutMs), "config")
	logger.Info(fmt.Sprintf("Duration: %s", config.Duration()), "config")
	logger.Info(fmt.Sprintf("Metrics address: %s", config.MetricsAddr), "config")
	logger.Info(fmt.Sprintf("Simulated spills: %d x %d events", config.Simulator.Spills, config.Simulator.EventsPerSpill), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
