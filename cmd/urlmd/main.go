// Copyright 2025 The urlmd Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command urlmd runs the URL-to-Markdown conversion gateway: the sync
// and streaming HTTP surface, the batch/deepcrawl endpoints, and a
// one-shot CLI conversion mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"urlmd/internal/adapters"
	"urlmd/internal/browsergate"
	"urlmd/internal/config"
	"urlmd/internal/convert"
	"urlmd/internal/crawler"
	"urlmd/internal/httpapi"
	"urlmd/internal/logging"
	"urlmd/internal/metrics"
	"urlmd/internal/paywall"
	"urlmd/internal/retrytoken"
	"urlmd/internal/store"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "urlmd",
		Short: "URL-to-Markdown conversion gateway",
		Long: `urlmd fetches an arbitrary URL and converts it to clean Markdown, text,
HTML, or JSON, routing through per-host adapters, a headless-browser
fallback gate, archive/paywall recovery, and an optional deep-crawl
scheduler.`,
	}
	root.AddCommand(newServeCommand(), newConvertCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the urlmd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newConvertCommand() *cobra.Command {
	var format, selector string
	var forceBrowser, noCache bool

	c := &cobra.Command{
		Use:   "convert <url>",
		Short: "convert a single URL and print the result to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			logging.Configure(cfg.Env)
			orch := buildOrchestrator(cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			result, err := orch.Convert(ctx, convert.Request{
				URL:          args[0],
				Format:       convert.Format(format),
				Selector:     selector,
				ForceBrowser: forceBrowser,
				NoCache:      noCache,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Content)
			return nil
		},
	}
	c.Flags().StringVar(&format, "format", "markdown", "output format: markdown|html|text|json")
	c.Flags().StringVar(&selector, "selector", "", "CSS selector scoping extraction")
	c.Flags().BoolVar(&forceBrowser, "force-browser", false, "force headless-browser rendering")
	c.Flags().BoolVar(&noCache, "no-cache", false, "bypass the cache for this conversion")
	return c
}

func runServe(ctx context.Context) error {
	cfg := config.FromEnv()
	logging.Configure(cfg.Env)
	log := logging.Named("serve")
	defer logging.Sync()

	orch := buildOrchestrator(cfg)
	reg := metrics.New(true)

	server := &httpapi.Server{
		Orchestrator: orch,
		Metrics:      reg,
		Images:       buildImageStore(cfg),
		Snapshots:    crawler.NewMemorySnapshotStore(),
		APIToken:     cfg.APIToken,
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && reg.Prometheus() != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			server.NewRouter().ServeHTTP(w, r)
		}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if metricsServer != nil {
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

func buildOrchestrator(cfg config.Config) *convert.Orchestrator {
	orch := convert.NewOrchestrator()
	orch.Adapters = adapters.Default()
	orch.RetryTokens = retrytoken.New()
	orch.Gate = browsergate.New(4, 10*time.Second, 64)
	orch.ProxyURL = cfg.ProxyURL
	orch.ProxyPool = cfg.ProxyPool
	orch.Paywall = buildPaywallTable(cfg)
	orch.Cache = buildCache(cfg)
	return orch
}

func buildPaywallTable(cfg config.Config) *paywall.Table {
	table := paywall.NewTable(nil)
	if cfg.PaywallRulesJSON != "" {
		if err := table.ReplaceFromJSON([]byte(cfg.PaywallRulesJSON)); err != nil {
			logging.L().Warn("invalid PAYWALL_RULES_JSON, ignoring", zap.Error(err))
		}
	}
	return table
}

func buildCache(cfg config.Config) convert.Cache {
	if cfg.RedisURL == "" {
		return store.NewMemoryCache()
	}
	cache, err := store.NewRedisCache(cfg.RedisURL)
	if err != nil {
		logging.L().Warn("failed to connect to REDIS_URL, falling back to in-memory cache", zap.Error(err))
		return store.NewMemoryCache()
	}
	return cache
}

func buildImageStore(cfg config.Config) store.Images {
	if cfg.RedisURL == "" {
		return store.NewMemoryImageStore()
	}
	images, err := store.NewRedisImageStore(cfg.RedisURL)
	if err != nil {
		logging.L().Warn("failed to connect to REDIS_URL, falling back to in-memory image store", zap.Error(err))
		return store.NewMemoryImageStore()
	}
	return images
}
