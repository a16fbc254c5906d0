package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TradeSentinel/internal/config"
	"TradeSentinel/internal/logging"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/pipeline"
)

var (
	version = "0.3.0"
	cfgPath string
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Paper-trading signal pipeline for US equities",
		Long: `sentinel screens a stock universe, detects chart and candlestick patterns,
computes technical indicators and news sentiment, and scores each candidate
into a BUY, SELL or HOLD signal executed against a paper portfolio.`,
		SilenceUsage: true,
	}

	defPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defPath = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defPath, "Path to the YAML config file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sentinel version %s\n", version)
		},
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runCmd() *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler, API and Telegram bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.scheduler.RegisterAll(cfg.Schedule.CycleCron, cfg.Schedule.ResetCron); err != nil {
				return fmt.Errorf("register cron tasks: %w", err)
			}
			a.scheduler.Start()
			defer a.scheduler.Stop()

			if cfg.API.Enabled {
				srv := a.apiServer()
				go func() {
					if err := srv.Start(); err != nil {
						logger.Error("api server", zap.Error(err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						logger.Warn("api shutdown", zap.Error(err))
					}
				}()
			}

			if a.telegram != nil {
				go a.telegram.StartPolling(ctx, a.scheduler.HandleCommand)
				logger.Info("telegram polling started")
			}

			if runNow || os.Getenv("RUN_ON_START") == "true" {
				logger.Info("running first cycle on start")
				go func() {
					if _, err := a.scheduler.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("startup cycle", zap.Error(err))
					}
				}()
			}

			logger.Info("sentinel is running",
				zap.Int("universe", len(cfg.Universe)),
				zap.String("cycle_cron", cfg.Schedule.CycleCron),
				zap.Bool("execute_orders", cfg.Pipeline.ExecuteOrders))

			<-ctx.Done()
			logger.Info("shutdown signal received, stopping")
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run one cycle immediately on start")
	return cmd
}

func scanCmd() *cobra.Command {
	var (
		execute bool
		symbols string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one pipeline scan and print the signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			universe := cfg.Universe
			if symbols != "" {
				universe = config.SplitSymbols(symbols)
			}
			opts := a.scheduler.Options
			opts.ExecuteOrders = execute || opts.ExecuteOrders

			a.scheduler.ResetDaily()
			rep, err := a.pipeline.Run(ctx, pipeline.NewRunContext(universe, opts, time.Now()))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printReport(cmd, rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "Submit actionable signals to the paper broker")
	cmd.Flags().StringVar(&symbols, "symbols", "", "Comma separated symbols overriding the configured universe")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run report as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, r *model.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: universe %d, candidates %d, signals %d, %s\n",
		r.RunID, r.Universe, len(r.Candidates), len(r.Signals), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, s := range r.Signals {
		line := fmt.Sprintf("  %-6s %-4s %-8s score %5.1f", s.Symbol, s.Type, s.Strength, s.CompositeScore)
		if s.Actionable() {
			line += fmt.Sprintf("  entry %.2f stop %.2f target %.2f size %d", s.EntryPrice, s.StopLoss, s.TargetPrice, s.PositionSize)
		} else if len(s.Rationale.FailedGates) > 0 {
			gates := make([]string, len(s.Rationale.FailedGates))
			for i, g := range s.Rationale.FailedGates {
				gates[i] = string(g)
			}
			line += "  gates " + strings.Join(gates, ",")
		}
		fmt.Fprintln(out, line)
	}
	for _, o := range r.Orders {
		fmt.Fprintf(out, "  order %s %s %d @ %.2f [%s] %s\n", o.Side, o.Symbol, o.Quantity, o.Price, o.Status, o.Reason)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(out, "  skipped %s (%s): %s\n", f.Symbol, f.Stage, f.Error)
	}
}
