package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	dm "labfolio/data/models"
	"labfolio/service/scheduler"
	"labfolio/service/server"
)

const (
	shutdownTimeout = 10 * time.Second
	refreshTimeout  = 30 * time.Minute
)

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "labfolio",
		Short:         "Factor model analysis of portfolio holdings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before reading the environment (default .env)")

	root.AddCommand(serveCommand(&envFile))
	root.AddCommand(refreshCommand(&envFile))
	root.AddCommand(analyzeCommand(&envFile))

	return root
}

func serveCommand(envFile *string) *cobra.Command {
	var noRefresh bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the http api and the scheduled factor refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, *envFile, requirements{database: true})
			if err != nil {
				return err
			}
			defer a.close()

			sc, err := a.serviceContext(ctx)
			if err != nil {
				return err
			}

			sched := scheduler.New(a.log)
			switch {
			case noRefresh || a.cfg.RefreshSchedule == "":
				a.log.Info().Msg("scheduled factor refresh disabled")
			case a.feed == nil:
				a.log.Warn().Msg("ALPHAVANTAGE_API_KEY not set, scheduled factor refresh disabled")
			default:
				job := scheduler.NewRefreshJob(ctx, a.refresher(), refreshTimeout)
				if err := sched.AddJob(a.cfg.RefreshSchedule, job); err != nil {
					return fmt.Errorf("invalid REFRESH_SCHEDULE %q: %w", a.cfg.RefreshSchedule, err)
				}
			}
			sched.Start()
			defer sched.Stop()

			srv := server.New(server.Config{
				Addr:        a.cfg.HTTPAddr,
				CORSOrigins: a.cfg.CORSOrigins,
				Log:         a.log,
				Metrics:     a.metrics,
				Service:     sc,
			})

			serveErr := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
				a.log.Info().Msg("received shutdown signal, shutting down gracefully")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Error().Err(err).Msg("http server shutdown error")
			}

			a.log.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "do not schedule the factor return refresh")

	return cmd
}

func refreshCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Replace stored factor returns with fresh ones from the market data feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, *envFile, requirements{database: true, feed: true})
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.refresher().Run(ctx)
			if err != nil {
				return err
			}
			if summary.Succeeded == 0 && len(summary.Failed) > 0 {
				return fmt.Errorf("every factor refresh failed: %s", strings.Join(summary.Failed, ", "))
			}
			return nil
		},
	}
}

func analyzeCommand(envFile *string) *cobra.Command {
	var (
		factors []string
		tickers []string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Fit the factor model for a set of tickers and print the report as json",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, *envFile, requirements{})
			if err != nil {
				return err
			}
			defer a.close()

			analyzer, err := a.analyzer()
			if err != nil {
				return err
			}

			report, err := analyzer.Analyze(ctx, factors, holdingsFromTickers(tickers))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringSliceVar(&factors, "factors", nil, "factor ids, comma separated")
	cmd.Flags().StringSliceVar(&tickers, "tickers", nil, "asset tickers, comma separated")
	_ = cmd.MarkFlagRequired("factors")
	_ = cmd.MarkFlagRequired("tickers")

	return cmd
}

// holdingsFromTickers gives each ticker a quantity of one, the analysis only reads the tickers
func holdingsFromTickers(tickers []string) []dm.PortfolioHolding {
	res := make([]dm.PortfolioHolding, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.TrimSpace(t); t != "" {
			res = append(res, dm.PortfolioHolding{Ticker: t, Quantity: 1})
		}
	}
	return res
}
