package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"styled/internal/backend"
	"styled/internal/config"
	"styled/internal/httpapi"
	"styled/internal/manager"
	"styled/internal/registry"
)

type serveOptions struct {
	configPath    string
	addr          string
	registryURL   string
	wasmEngineURL string
	maxResident   int
	disableGPU    bool
	maxBodyMB     int
	logLevel      string
	corsOrigins   []string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &serveOptions{}
	root := &cobra.Command{
		Use:           "styled",
		Short:         "Image stylization daemon with GPU, WASM and CPU backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	f := root.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to a config file (.yaml/.json/.toml)")
	f.StringVar(&opts.addr, "addr", envOr("STYLED_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	f.StringVar(&opts.registryURL, "registry-url", os.Getenv("STYLED_REGISTRY_URL"), "Style catalog URL or file path (empty = builtin catalog)")
	f.StringVar(&opts.wasmEngineURL, "wasm-engine-url", os.Getenv("STYLED_WASM_ENGINE_URL"), "WASM engine module URL or file path (empty = no WASM backend)")
	f.IntVar(&opts.maxResident, "max-resident", 0, "Max resident styles per backend (0 = default)")
	f.BoolVar(&opts.disableGPU, "disable-gpu", false, "Skip the GPU backend entirely")
	f.IntVar(&opts.maxBodyMB, "max-body-mb", 0, "Max upload size in MiB (0 = default)")
	f.StringVar(&opts.logLevel, "log-level", envOr("STYLED_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	f.StringSliceVar(&opts.corsOrigins, "cors-origins", nil, "Allowed CORS origins (empty = CORS disabled)")

	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// applyConfigFile folds config file values under flags: an explicitly set
// flag always wins over the file.
func applyConfigFile(cmd *cobra.Command, opts *serveOptions) error {
	if opts.configPath == "" {
		return nil
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Addr != "" && !cmd.Flags().Changed("addr") {
		opts.addr = cfg.Addr
	}
	if cfg.RegistryURL != "" && !cmd.Flags().Changed("registry-url") {
		opts.registryURL = cfg.RegistryURL
	}
	if cfg.WASMEngineURL != "" && !cmd.Flags().Changed("wasm-engine-url") {
		opts.wasmEngineURL = cfg.WASMEngineURL
	}
	if cfg.MaxResident != 0 && !cmd.Flags().Changed("max-resident") {
		opts.maxResident = cfg.MaxResident
	}
	if cfg.DisableGPU && !cmd.Flags().Changed("disable-gpu") {
		opts.disableGPU = true
	}
	if cfg.MaxBodyMB != 0 && !cmd.Flags().Changed("max-body-mb") {
		opts.maxBodyMB = cfg.MaxBodyMB
	}
	if cfg.LogLevel != "" && !cmd.Flags().Changed("log-level") {
		opts.logLevel = cfg.LogLevel
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func serve(cmd *cobra.Command, opts *serveOptions) error {
	if err := applyConfigFile(cmd, opts); err != nil {
		return err
	}
	log := newLogger(opts.logLevel)

	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	styles, usedBuiltin := registry.FetchWithFallback(baseCtx, http.DefaultClient, opts.registryURL)
	if usedBuiltin && opts.registryURL != "" {
		log.Warn().Str("url", opts.registryURL).Msg("catalog unreachable, using builtin styles")
	}
	log.Info().Int("styles", len(styles)).Bool("builtin", usedBuiltin).Msg("style catalog loaded")

	// Backend priority is fixed: GPU, then the WASM runtime, then CPU. The
	// CPU backend is always present so stylization can never be refused.
	var backends []backend.Backend
	if !opts.disableGPU {
		backends = append(backends, backend.NewGPUBackend(log))
	}
	if opts.wasmEngineURL != "" {
		backends = append(backends, backend.NewWASMBackend(opts.wasmEngineURL, http.DefaultClient, log))
	}
	backends = append(backends, backend.NewCPUBackend(log))

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:    styles,
		Backends:    backends,
		MaxResident: opts.maxResident,
		Logger:      log,
	})
	disp := manager.NewDispatcher(baseCtx, mgr, backends, log)

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(baseCtx)
	if opts.maxBodyMB > 0 {
		httpapi.SetMaxBodyBytes(int64(opts.maxBodyMB) << 20)
	}
	if len(opts.corsOrigins) > 0 {
		httpapi.SetCORSOptions(true, opts.corsOrigins,
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Content-Type", "X-Log-Level"})
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           httpapi.NewMux(disp),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", opts.addr).Msg("styled listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-baseCtx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	for _, b := range backends {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Str("backend", string(b.Kind())).Msg("backend close error")
		}
	}
	return nil
}
