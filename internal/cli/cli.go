// Package cli wires the review pipeline behind a cobra command tree:
//
//	thermcheck run --load-dir /loads/2024/JUL0824A/ofls
//	thermcheck validate --start 2024:100:00:00:00.000 --stop 2024:121:00:00:00.000
//
// Configuration comes from a YAML file naming the modeled MSID, the limit
// set, and the data sources; per-run knobs are flags.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orbitalworks/thermcheck/core"
	"github.com/orbitalworks/thermcheck/internal/logging"
	"github.com/orbitalworks/thermcheck/internal/observability"
	"github.com/orbitalworks/thermcheck/internal/report"
	"github.com/orbitalworks/thermcheck/internal/telemetry"
	"github.com/orbitalworks/thermcheck/kb"
	"github.com/orbitalworks/thermcheck/met"
	"github.com/orbitalworks/thermcheck/model"
)

// Config is the YAML run configuration.
type Config struct {
	// MSID is the telemetry mnemonic of the modeled temperature.
	MSID string `yaml:"msid"`
	// ModelSpec is the path to the thermal model specification JSON.
	ModelSpec string `yaml:"model_spec"`
	// TelemetryDir holds the per-MSID telemetry archive exports.
	TelemetryDir string `yaml:"telemetry_dir"`
	// History is an optional command/state history JSON export.
	History string `yaml:"history"`
	// DaysBack overrides the default telemetry lookback when positive.
	DaysBack float64     `yaml:"days_back"`
	Limits   core.Limits `yaml:"limits"`
	// Validation maps quantity names to residual-quantile bounds.
	Validation map[string][]core.ValidationLimit `yaml:"validation"`
	TLE        struct {
		Line1 string `yaml:"line1"`
		Line2 string `yaml:"line2"`
	} `yaml:"tle"`
	// MetricsAddr, when set, serves Prometheus metrics during the run.
	MetricsAddr string `yaml:"metrics_addr"`
}

// LoadConfig reads and decodes the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.MSID == "" {
		return nil, fmt.Errorf("config %s: msid is required", path)
	}
	if cfg.ModelSpec == "" {
		return nil, fmt.Errorf("config %s: model_spec is required", path)
	}
	return &cfg, nil
}

var configFile string

// BuildCLI assembles the thermcheck command tree.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:           "thermcheck",
		Short:         "Thermal load review for spacecraft command products",
		Long:          "thermcheck predicts a modeled temperature over a command load under review,\nflags planning limit violations, and validates the model against flown telemetry.",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/thermcheck.yaml", "config file path")

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildValidateCommand())
	return root
}

func buildRunCommand() *cobra.Command {
	var (
		loadDir   string
		outDir    string
		interrupt bool
		runStart  string
		days      float64
		tInit     float64
		pitch     float64
		simpos    float64
		ccdCount  int
		fepCount  int
		vidBoard  int
		clocking  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a review prediction for one command load",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}

			req := core.PredictionRequest{
				LoadDir:   loadDir,
				Interrupt: interrupt,
				MSID:      cfg.MSID,
				DaysBack:  cfg.DaysBack,
				Limits:    cfg.Limits,
			}
			if days > 0 {
				req.DaysBack = days
			}
			if runStart != "" {
				t, err := met.Secs(runStart)
				if err != nil {
					return fmt.Errorf("--run-start: %w", err)
				}
				req.RunStart = t
			}
			if cmd.Flags().Changed("pitch") || cmd.Flags().Changed("simpos") {
				ov := &core.StateOverride{Attrs: model.StateAttrs{
					Pitch:    pitch,
					SimPos:   simpos,
					CCDCount: ccdCount,
					FEPCount: fepCount,
					VidBoard: vidBoard,
					Clocking: clocking,
					PCADMode: "NPNT",
				}}
				if cmd.Flags().Changed("t-init") {
					ov.TInit = &tInit
				}
				req.Override = ov
			} else if cmd.Flags().Changed("t-init") {
				return fmt.Errorf("--t-init requires an explicit initial state (--pitch and --simpos)")
			}

			return runPrediction(cmd.Context(), cfg, req, outDir)
		},
	}

	cmd.Flags().StringVar(&loadDir, "load-dir", "", "product directory of the load under review")
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "out", "directory for output products")
	cmd.Flags().BoolVar(&interrupt, "interrupt", false, "this load interrupts the approved schedule")
	cmd.Flags().StringVar(&runStart, "run-start", "", "run time as YYYY:DDD:HH:MM:SS.sss (default: now)")
	cmd.Flags().Float64Var(&days, "days", 0, "telemetry lookback in days")
	cmd.Flags().Float64Var(&tInit, "t-init", 0, "initial temperature, bypassing telemetry seeding")
	cmd.Flags().Float64Var(&pitch, "pitch", 0, "initial solar pitch angle")
	cmd.Flags().Float64Var(&simpos, "simpos", 0, "initial SIM translation position")
	cmd.Flags().IntVar(&ccdCount, "ccd-count", 0, "initial powered CCD count")
	cmd.Flags().IntVar(&fepCount, "fep-count", 0, "initial powered FEP count")
	cmd.Flags().IntVar(&vidBoard, "vid-board", 0, "initial video board power state")
	cmd.Flags().IntVar(&clocking, "clocking", 0, "initial clocking state")
	cmd.MarkFlagRequired("load-dir")

	return cmd
}

func buildValidateCommand() *cobra.Command {
	var (
		start  string
		stop   string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the model against flown telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			req := core.ValidationRequest{
				DateStart: start,
				DateStop:  stop,
				MSID:      cfg.MSID,
				Limits:    cfg.Validation,
			}
			return runValidation(cmd.Context(), cfg, req, outDir)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "interval start as YYYY:DDD:HH:MM:SS.sss")
	cmd.Flags().StringVar(&stop, "stop", "", "interval stop as YYYY:DDD:HH:MM:SS.sss")
	cmd.Flags().StringVarP(&outDir, "outdir", "o", "out", "directory for output products")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("stop")

	return cmd
}

func runPrediction(ctx context.Context, cfg *Config, req core.PredictionRequest, outDir string) error {
	log := logging.NewFromEnv()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	metrics, err := observability.NewPipelineCollector(nil)
	if err != nil {
		return err
	}
	stopMetrics := serveMetrics(ctx, cfg.MetricsAddr, metrics, log)
	defer stopMetrics()

	engine, err := newEngine(cfg, log, metrics)
	if err != nil {
		return err
	}

	res, err := engine.RunPrediction(ctx, req)
	if err != nil {
		return err
	}
	if err := writePredictionProducts(outDir, res); err != nil {
		return err
	}

	fmt.Printf("load %s: %d states, %d violations\n",
		res.Load.Name, len(res.States), len(res.Violations))
	for _, v := range res.Violations {
		fmt.Printf("  %s violation %s to %s: extreme %.2f vs limit %.2f\n",
			v.Kind, v.DateStart, v.DateStop, v.ExtremeTemp, v.Limit)
	}
	return nil
}

func runValidation(ctx context.Context, cfg *Config, req core.ValidationRequest, outDir string) error {
	log := logging.NewFromEnv()

	metrics, err := observability.NewPipelineCollector(nil)
	if err != nil {
		return err
	}
	stopMetrics := serveMetrics(ctx, cfg.MetricsAddr, metrics, log)
	defer stopMetrics()

	engine, err := newEngine(cfg, log, metrics)
	if err != nil {
		return err
	}

	res, err := engine.RunValidation(ctx, req)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(filepath.Join(outDir, "validation_temps.dat"))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.WriteTemps(f, res.Times, res.Pred); err != nil {
		return err
	}

	for quantity, stats := range res.Quantiles {
		fmt.Printf("%s residual quantiles:\n", quantity)
		for _, s := range stats {
			fmt.Printf("  q%02d  %+.3f\n", s.Quantile, s.Value)
		}
	}
	for _, v := range res.Violations {
		fmt.Printf("  %s q%02d = %+.3f exceeds limit %.3f\n",
			v.Quantity, v.Quantile, v.Value, v.Limit)
	}
	if len(res.Violations) == 0 {
		fmt.Println("all residual quantiles within limits")
	}
	return nil
}

// newEngine assembles the pipeline from the configuration.
func newEngine(cfg *Config, log logging.Logger, metrics *observability.PipelineCollector) (*core.ReviewEngine, error) {
	specFile, err := os.Open(cfg.ModelSpec)
	if err != nil {
		return nil, fmt.Errorf("open model spec: %w", err)
	}
	defer specFile.Close()
	spec, err := core.LoadModelSpec(specFile)
	if err != nil {
		return nil, err
	}

	store := kb.NewHistoryStore()
	if cfg.History != "" {
		f, err := os.Open(cfg.History)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		defer f.Close()
		if _, err := kb.LoadHistory(store, f); err != nil {
			return nil, err
		}
	}

	var eph *core.Ephemeris
	if cfg.TLE.Line1 != "" && cfg.TLE.Line2 != "" {
		eph = core.NewEphemerisFromTLE(cfg.TLE.Line1, cfg.TLE.Line2)
	}

	return &core.ReviewEngine{
		Source:    core.FileLoadSource{},
		Store:     store,
		Telemetry: &telemetry.FileArchive{Dir: cfg.TelemetryDir},
		Sim:       core.FirstOrderSimulator{},
		Spec:      spec,
		Eph:       eph,
		Clock:     met.SystemClock{},
		Log:       log,
		Metrics:   metrics,
	}, nil
}

// serveMetrics starts the /metrics listener when an address is configured.
// The returned stop function shuts the server down; it is a no-op when
// metrics are disabled.
func serveMetrics(ctx context.Context, addr string, metrics *observability.PipelineCollector, log logging.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info(ctx, "metrics server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}

func writePredictionProducts(outDir string, res *core.PredictionResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	states, err := os.Create(filepath.Join(outDir, "states.dat"))
	if err != nil {
		return err
	}
	defer states.Close()
	if err := report.WriteStates(states, res.States, res.AltitudesKm); err != nil {
		return err
	}

	temps, err := os.Create(filepath.Join(outDir, "temperatures.dat"))
	if err != nil {
		return err
	}
	defer temps.Close()
	if err := report.WriteTemps(temps, res.Times, res.Temps); err != nil {
		return err
	}

	viols, err := os.Create(filepath.Join(outDir, "violations.dat"))
	if err != nil {
		return err
	}
	defer viols.Close()
	return report.WriteViolations(viols, res.Violations)
}
