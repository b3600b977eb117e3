package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/next-exp/spectra_go/pkg/calibdb"
	"github.com/next-exp/spectra_go/pkg/engine"
	"github.com/next-exp/spectra_go/pkg/h5store"
	"github.com/next-exp/spectra_go/pkg/spectra"
)

// defaultProject is used when the configuration names no project file.
const defaultProject = `
spectra:
  - type: Histogram1D
    name: energy
    attributes:
      stream_id: detector
      value.value: energy
  - type: Image2D
    name: hitmap
    attributes:
      stream_id: detector
      x.value: x
      y.value: y
  - type: TimeDomain
    name: rate
    attributes:
      stream_id: detector
      time.resolution: 1
      time.units: ms
  - type: TOF1DCorrelate
    name: tof
    attributes:
      stream_id: detector
      chopper_stream: chopper
      time.resolution: 10
      time.units: us
`

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Acquire simulated streams into a project and save it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFilename, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		configuration, err := LoadConfiguration(configFilename)
		if err != nil {
			return fmt.Errorf("error reading configuration file: %w", err)
		}
		logger = NewLogger(cmd.OutOrStdout(), cmd.ErrOrStderr(), configuration.Verbosity)
		if configuration.Verbosity > 0 {
			logger.Info(fmt.Sprintf("Reading configuration file: %s", configFilename), "main")
			printConfiguration(configuration, logger)
		}
		return run(cmd.Context(), cmd.OutOrStdout(), configuration)
	},
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Configuration file path")
	rootCmd.AddCommand(runCmd)
}

func loadProject(configuration Configuration) (*engine.Project, error) {
	var pf engine.ProjectFile
	var err error
	if configuration.ProjectFile == "" {
		pf, err = engine.ParseProjectFile([]byte(defaultProject))
	} else {
		pf, err = engine.LoadProjectFile(configuration.ProjectFile)
	}
	if err != nil {
		return nil, err
	}
	p := engine.NewProject(nil, spectra.Options{Logger: logger})
	if err := p.AddDefinitions(pf); err != nil {
		return nil, err
	}
	return p, nil
}

func applyCalibrations(p *engine.Project, configuration Configuration) error {
	if configuration.NoDB {
		return nil
	}
	dbConn, err := calibdb.Connect(configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer dbConn.Close()
	loader := calibdb.Loader{Logger: logger, Verbosity: configuration.Verbosity}
	cals, err := loader.LoadCalibrations(dbConn, configuration.RunNumber)
	if err != nil {
		return fmt.Errorf("error getting calibrations from database: %w", err)
	}
	n := p.ApplyCalibrations(cals)
	logger.Info(fmt.Sprintf("%d axes calibrated for run %d", n, configuration.RunNumber), "main")
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(fmt.Sprintf("metrics server: %v", err))
		}
	}()
	return srv
}

func run(ctx context.Context, out io.Writer, configuration Configuration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := loadProject(configuration)
	if err != nil {
		return err
	}
	if err := applyCalibrations(p, configuration); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	if configuration.MetricsAddr != "" {
		srv := serveMetrics(configuration.MetricsAddr, reg)
		defer srv.Close()
	}

	queue := engine.NewSpillQueue(configuration.QueueCapacity, metrics)
	sim := engine.NewSimulator(configuration.SimulatorConfig(), logger)
	runner := engine.NewRunner(p, queue, engine.RunnerOptions{
		PopTimeout: time.Duration(configuration.PopTimeoutMs) * time.Millisecond,
		Logger:     logger,
		Metrics:    metrics,
	}, sim)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupts:
			logger.Info("interrupt received, stopping acquisition", "main")
			runner.Interrupt()
		case <-done:
		}
	}()

	sum, err := runner.Acquire(ctx, configuration.Duration())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Binned %s spills, %s events from %d streams in %s\n",
		humanize.Comma(int64(sum.Spills)), humanize.Comma(int64(sum.Events)), len(sum.Streams),
		sum.Elapsed.Round(time.Millisecond))
	for _, stream := range sum.Streams {
		fmt.Fprintf(out, "  %s: %s events\n", stream, humanize.Comma(int64(sum.StreamEvents[stream])))
	}
	if sum.Dropped > 0 || sum.Skipped > 0 {
		fmt.Fprintf(out, "Lost %d spills (%d dropped, %d skipped)\n", int(sum.Dropped)+sum.Skipped, sum.Dropped, sum.Skipped)
	}

	if configuration.FileOut == "" {
		printSummary(out, p, false)
		return nil
	}
	f, err := h5store.Create(configuration.FileOut)
	if err != nil {
		return err
	}
	if err := p.Save(f.Root()); err != nil {
		f.Close()
		return fmt.Errorf("error saving project: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %d spectra to %s\n", p.Len(), configuration.FileOut)
	return nil
}
