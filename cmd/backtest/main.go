// Package main implements the backtest CLI.
//
// It replays a CSV of hourly observations through the feature builder and
// scores a model handle against the persistence baseline over rolling folds.
// With -calibrate it writes the residual quantiles back into the manifest so
// the residual tail strategy can be enabled.
//
// Usage:
//
//	go run ./cmd/backtest -data obs.csv
//	go run ./cmd/backtest -data obs.csv -model-dir ./models/wind -window 24 -horizons 1,3,6 -train 168 -step 24
//	go run ./cmd/backtest -data obs.csv -model-dir ./models/wind -calibrate
//	go run ./cmd/backtest -data obs.csv -json > report.json
//
// LOG_LEVEL is read from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"courtwind/internal/app"
	"courtwind/internal/eval"
	"courtwind/internal/features"
	"courtwind/internal/forecasts"
	"courtwind/internal/modelstore"
	"courtwind/internal/types"
)

type options struct {
	dataPath     string
	locationID   string
	modelDir     string
	manifest     string
	tailStrategy string
	tailFactor   float64
	window       int
	horizons     []types.Horizon
	train        int
	test         int
	step         int
	quantile     float64
	calibrate    bool
	asJSON       bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	def := eval.DefaultConfig()
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	var horizons string
	fs.StringVar(&o.dataPath, "data", "", "CSV file of hourly observations (required)")
	fs.StringVar(&o.locationID, "location", "backtest", "location id used in log lines")
	fs.StringVar(&o.modelDir, "model-dir", "", "directory holding the model manifest; empty runs persistence")
	fs.StringVar(&o.manifest, "manifest", "manifest.json", "manifest file name inside -model-dir")
	fs.StringVar(&o.tailStrategy, "tail", modelstore.TailScaling, "tail strategy: scaling or residual")
	fs.Float64Var(&o.tailFactor, "tail-factor", forecasts.DefaultTailFactor, "scaling tail factor")
	fs.IntVar(&o.window, "window", def.WindowLength, "window length in rows")
	fs.StringVar(&horizons, "horizons", "1,3,6", "comma separated forecast horizons in hours")
	fs.IntVar(&o.train, "train", def.MinTrain, "minimum training rows before the first fold")
	fs.IntVar(&o.test, "test", def.TestWindow, "rows per test fold")
	fs.IntVar(&o.step, "step", def.Step, "rows between fold starts")
	fs.Float64Var(&o.quantile, "quantile", def.TailQuantile, "residual quantile for the calibrated tail")
	fs.BoolVar(&o.calibrate, "calibrate", false, "write residual_q90 into the manifest in -model-dir")
	fs.BoolVar(&o.asJSON, "json", false, "print the report as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.dataPath == "" {
		return nil, errors.New("-data is required")
	}
	if o.calibrate && o.modelDir == "" {
		return nil, errors.New("-calibrate requires -model-dir")
	}
	hs, err := parseHorizons(horizons)
	if err != nil {
		return nil, err
	}
	o.horizons = hs
	return o, nil
}

func parseHorizons(s string) ([]types.Horizon, error) {
	var out []types.Horizon
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(part, "h"))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid horizon %q", part)
		}
		out = append(out, types.Horizon(n))
	}
	if len(out) == 0 {
		return nil, errors.New("-horizons must name at least one horizon")
	}
	return types.SortHorizons(out), nil
}

func main() {
	_ = godotenv.Load()
	logger := app.NewLogger(os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	f, err := os.Open(o.dataPath)
	if err != nil {
		return fmt.Errorf("open data: %w", err)
	}
	obs, err := readObservations(f)
	f.Close()
	if err != nil {
		return err
	}

	builder, err := features.NewBuilder(features.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	set, err := builder.Build(types.ObservationSeries{LocationID: o.locationID, Observations: obs})
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "features built",
		"observations", len(obs),
		"rows", len(set.Rows),
		"columns", len(set.Schema),
	)

	handle, err := loadHandle(ctx, o, builder.Schema(), logger)
	if err != nil {
		return err
	}
	window := o.window
	if handle.WindowLength > 0 && handle.WindowLength != window {
		logger.WarnContext(ctx, "model window length overrides -window",
			"flag", window,
			"model", handle.WindowLength,
		)
		window = handle.WindowLength
	}

	cfg := eval.Config{
		Horizons:     o.horizons,
		WindowLength: window,
		MinTrain:     o.train,
		TestWindow:   o.test,
		Step:         o.step,
		TailQuantile: o.quantile,
	}
	report, err := eval.NewBacktester(forecasts.NewForecaster(logger), logger).Run(ctx, set, handle, cfg)
	if err != nil {
		return err
	}

	if o.calibrate {
		if err := calibrate(ctx, o, report, logger); err != nil {
			return err
		}
	}

	if o.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(stdout, report)
}

func loadHandle(ctx context.Context, o *options, schema types.Schema, logger *slog.Logger) (*forecasts.Handle, error) {
	if o.modelDir == "" {
		h := forecasts.NewPersistenceHandle(forecasts.ScalingTail{Factor: o.tailFactor})
		h.Schema = schema
		h.WindowLength = o.window
		return h, nil
	}
	loader := modelstore.NewLoader(modelstore.DirSource{Root: o.modelDir}, logger)
	h, err := loader.Load(ctx, o.manifest, modelstore.LoadOptions{
		Schema:       schema,
		TailStrategy: o.tailStrategy,
		TailFactor:   o.tailFactor,
	})
	if err != nil {
		return nil, err
	}
	if h.WindowLength == 0 {
		h.WindowLength = o.window
	}
	return h, nil
}

func calibrate(ctx context.Context, o *options, report *eval.Report, logger *slog.Logger) error {
	loader := modelstore.NewLoader(modelstore.DirSource{Root: o.modelDir}, logger)
	m, err := loader.ReadManifest(ctx, o.manifest)
	if err != nil {
		return err
	}
	q := report.ResidualQuantiles()
	if m.ResidualQ90 == nil {
		m.ResidualQ90 = make(map[types.Horizon]float64, len(q))
	}
	for h, v := range q {
		m.ResidualQ90[h] = v
	}
	if err := modelstore.WriteDir(o.modelDir, o.manifest, m, nil); err != nil {
		return err
	}
	logger.InfoContext(ctx, "manifest calibrated",
		"model", m.Name,
		"horizons", len(q),
		"quantile", o.quantile,
	)
	return nil
}

func printReport(w io.Writer, r *eval.Report) error {
	fmt.Fprintf(w, "model: %s  folds: %d  skipped windows: %d\n\n", r.Model, r.Folds, r.Skipped)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "horizon\tn\tmae\trmse\tmape\tpersist_mae\tskill\ttail_cover\tresid_q")
	for _, h := range r.Horizons {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.1f\t%.3f\t%.3f\t%.3f\t%.3f\n",
			h.Horizon, h.Model.N, h.Model.MAE, h.Model.RMSE, h.Model.MAPE,
			h.Persistence.MAE, h.Skill, h.TailCoverage, h.ResidualQuantile)
	}
	return tw.Flush()
}
