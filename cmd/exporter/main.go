package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ispnexporter/internal/pkg/factory"
	"ispnexporter/internal/pkg/global"
	"ispnexporter/internal/pkg/mahttp"
	"ispnexporter/pkg/collector"
	"ispnexporter/pkg/csvfmt"
	"ispnexporter/pkg/mbean"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	metadata   bool
	logLevel   zap.AtomicLevel
)

func setupZapLogger(outputs []string) error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(global.ExporterConf.Runtime.Log.Level())
	cfg.OutputPaths = outputs
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stdout"}
	}
	cfg.EncoderConfig.EncodeTime = logTimestampMSEncoder
	opts := []zap.Option{
		zap.AddStacktrace(zapcore.WarnLevel),
	}
	l, err := cfg.Build(opts...)
	if err != nil {
		return fmt.Errorf("failed to setup zap logging: %w", err)
	}
	logLevel = cfg.Level

	// set newly configured logger as default (access via zap.L() // zap.S())
	zap.ReplaceGlobals(l)

	return nil
}

// logTimestampMSEncoder encodes the log timestamp as an int64 from Time.UnixMilli()
func logTimestampMSEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendInt64(t.UnixMilli())
}

func newCollector() (mbean.Server, *collector.InfinispanCollector, error) {
	server, err := factory.NewBackendByType(global.ExporterConf.Backend)
	if err != nil {
		return nil, nil, err
	}

	c := collector.NewInfinispanCollector(server,
		collector.WithSkipCaches(global.ExporterConf.Collector.SkipCaches...))

	return server, c, nil
}

func serve(cmd *cobra.Command, args []string) error {
	log := zap.S()
	defer log.Sync()

	server, c, err := newCollector()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mbean.WaitReady(ctx, server, collector.ProbePattern, global.ExporterConf.Backend.StartupWait); err != nil {
		log.Warnw("management backend not ready, serving anyway", zap.Error(err))
	}

	if err := collector.Initialize(global.PrometheusRegistry, c); err != nil {
		return err
	}

	mux := mahttp.NewMux(global.PrometheusGatherer, c, global.ExporterConf.Runtime,
		map[string]http.Handler{"/loglvl": logLevel})

	wg := &sync.WaitGroup{}
	wg.Add(1)
	srv := mahttp.StartHTTPServer(wg, global.ExporterConf.Runtime.MetricsAddr, mux)
	log.Infow("exporter started", "addr", global.ExporterConf.Runtime.MetricsAddr,
		"csv_path", global.ExporterConf.Runtime.CSVPath, "version", global.Version)

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnw("systemd notify failed", zap.Error(err))
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http server shutdown", zap.Error(err))
	}
	wg.Wait()

	return nil
}

func collect(cmd *cobra.Command, args []string) error {
	_, c, err := newCollector()
	if err != nil {
		return err
	}

	families, err := c.Snapshot(cmd.Context())
	if err != nil {
		zap.S().Warnw("could not collect metrics", zap.Error(err))
	}

	return csvfmt.Encode(cmd.OutOrStdout(), families, csvfmt.Options{Metadata: metadata})
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           global.AppName,
		Short:         "Export Infinispan cache statistics as Prometheus metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := global.LoadExporterConfig(configPath); err != nil {
				return err
			}

			outputs := global.ExporterConf.Runtime.Log.Outputs
			if cmd.Name() == "collect" {
				// stdout carries the exposition
				outputs = []string{"stderr"}
			}

			return setupZapLogger(outputs)
		},
		RunE: serve,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Prometheus and CSV expositions over HTTP",
		RunE:  serve,
	}

	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect once and write the CSV exposition to stdout",
		RunE:  collect,
	}
	collectCmd.Flags().BoolVar(&metadata, "metadata", false, "include # HELP and # TYPE lines")

	rootCmd.AddCommand(serveCmd, collectCmd)

	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
