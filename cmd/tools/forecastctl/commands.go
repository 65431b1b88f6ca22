package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pifses/mlpipeline/internal/analytics/anomaly"
	"github.com/pifses/mlpipeline/internal/analytics/forecast"
	"github.com/pifses/mlpipeline/internal/cache"
	"github.com/pifses/mlpipeline/internal/history"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/pifses/mlpipeline/internal/services"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	seed    int64
	verbose bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forecastctl",
		Short: "Run the demand forecast engine offline",
		Long: `Runs the forecast ensemble and anomaly detector in process over the
seeded synthetic sales history. No cache, queue or database is needed.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Seed of the synthetic history")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log engine activity to stderr")

	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(anomaliesCmd())
	rootCmd.AddCommand(backtestCmd())

	return rootCmd
}

func cliLogger(cmd *cobra.Command) *logging.Logger {
	if !verbose {
		return logging.NewNop()
	}
	return logging.NewWithWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}, zerolog.DebugLevel)
}

// predictCmd prints a forecast for one store/product
func predictCmd() *cobra.Command {
	var (
		storeID    string
		productID  string
		days       int
		confidence bool
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast daily demand for a store and product",
		RunE: func(cmd *cobra.Command, args []string) error {
			memCache := cache.NewMemoryCache()
			defer func() { _ = memCache.Close() }()

			svc := services.NewForecastService(cliLogger(cmd), forecast.NewDefaultRegistry(), forecast.DefaultEnsemble(),
				history.NewSynthetic(seed), memCache, metrics.New(), services.ForecastOptions{})

			data, err := svc.Predict(context.Background(), &services.ForecastRequest{
				StoreID:           storeID,
				ProductID:         productID,
				Horizon:           days,
				IncludeConfidence: confidence,
			})
			if err != nil {
				return err
			}

			var doc interface{}
			if err := json.Unmarshal(data, &doc); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	}

	cmd.Flags().StringVar(&storeID, "store", "", "Store id (required)")
	cmd.Flags().StringVar(&productID, "product", "", "Product id (required)")
	cmd.Flags().IntVar(&days, "days", 14, "Forecast horizon in days (1-90)")
	cmd.Flags().BoolVar(&confidence, "confidence", false, "Include the ±15% confidence band")
	_ = cmd.MarkFlagRequired("store")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

// anomaliesCmd prints the anomaly report for one store/product
func anomaliesCmd() *cobra.Command {
	var (
		storeID    string
		productID  string
		window     int
		multiplier float64
	)

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Detect anomalous days in recent history",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := services.NewAnomalyService(cliLogger(cmd), anomaly.NewIQRDetector(multiplier),
				history.NewSynthetic(seed), metrics.New())

			report, err := svc.Detect(context.Background(), &services.AnomalyRequest{
				StoreID:    storeID,
				ProductID:  productID,
				WindowSize: window,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&storeID, "store", "", "Store id (required)")
	cmd.Flags().StringVar(&productID, "product", "", "Product id (required)")
	cmd.Flags().IntVar(&window, "window", services.DefaultAnomalyWindow, "Trailing window in days")
	cmd.Flags().Float64Var(&multiplier, "multiplier", anomaly.DefaultMultiplier, "IQR fence multiplier")
	_ = cmd.MarkFlagRequired("store")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

// BacktestScore is the error of one forecaster against the hold-out
type BacktestScore struct {
	MAPE float64 `json:"mape"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// BacktestReport compares the models on a hold-out tail
type BacktestReport struct {
	Days     int                      `json:"days"`
	Holdout  int                      `json:"holdout"`
	Seed     int64                    `json:"seed"`
	Scores   map[string]BacktestScore `json:"scores"`
	Fallback map[string]string        `json:"fallback,omitempty"`
}

// backtestCmd scores the ensemble against the last holdout days
func backtestCmd() *cobra.Command {
	var (
		days    int
		holdout int
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Score trend, pattern and ensemble forecasts on a hold-out tail",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runBacktest(days, holdout, seed)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().IntVar(&days, "days", 120, "Length of the synthetic history")
	cmd.Flags().IntVar(&holdout, "holdout", 14, "Trailing days withheld for scoring")

	return cmd
}

func runBacktest(days, holdout int, seed int64) (*BacktestReport, error) {
	if holdout < 1 || holdout > services.DefaultMaxHorizon {
		return nil, fmt.Errorf("holdout must be between 1 and %d, got %d", services.DefaultMaxHorizon, holdout)
	}
	if days <= holdout {
		return nil, fmt.Errorf("days (%d) must exceed holdout (%d)", days, holdout)
	}

	series := history.Generate(days, seed)
	train := series[:days-holdout]
	actual := []float64(series[days-holdout:])

	report := &BacktestReport{
		Days:     days,
		Holdout:  holdout,
		Seed:     seed,
		Scores:   make(map[string]BacktestScore, 3),
		Fallback: make(map[string]string),
	}

	outputs := make(map[string][]float64, 2)
	for _, m := range []forecast.Model{forecast.NewTrendModel(), forecast.NewPatternModel()} {
		outcome := m.Forecast(train.Clone(), holdout)
		if !outcome.OK() {
			report.Fallback[m.Name()] = outcome.Failure.String()
		}
		outputs[m.Name()] = outcome.OrFallback(train, holdout)
	}

	combined, err := forecast.DefaultEnsemble().Combine(outputs[forecast.TrendModelName], outputs[forecast.PatternModelName])
	if err != nil {
		return nil, err
	}
	outputs["ensemble"] = combined

	for name, predicted := range outputs {
		report.Scores[name] = BacktestScore{
			MAPE: forecast.MAPE(actual, predicted),
			RMSE: forecast.RMSE(actual, predicted),
			MAE:  forecast.MAE(actual, predicted),
		}
	}
	return report, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
