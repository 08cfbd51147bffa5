package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/qrgen/api"
	"github.com/openclaw/qrgen/config"
	"github.com/openclaw/qrgen/endpoint"
	"github.com/openclaw/qrgen/qr"
	"github.com/openclaw/qrgen/store"
)

var version = "v0.1.0"

// optionFlags are the widget options shared by generate and download.
type optionFlags struct {
	size    int
	format  string
	color   string
	bgcolor string
}

func (o *optionFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.size, "size", 0, "Image size in pixels (100-500, step 50)")
	cmd.Flags().StringVar(&o.format, "format", "", "Output format: png, svg or jpg")
	cmd.Flags().StringVar(&o.color, "color", "", "Foreground color as 6 hex digits")
	cmd.Flags().StringVar(&o.bgcolor, "bgcolor", "", "Background color as 6 hex digits")
}

func main() {
	root := &cobra.Command{
		Use:          "openclaw-qrgen",
		Short:        "QR code generator backed by a remote image endpoint",
		SilenceUsage: true,
	}

	var configPath string
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")

	// --- serve command -------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the QR generator widget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	})

	// --- generate command ----------------------------------------------------
	var genOpts optionFlags
	generateCmd := &cobra.Command{
		Use:   "generate [content]",
		Short: "Print the image URL for the given content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(configPath, args[0], genOpts)
		},
	}
	genOpts.register(generateCmd)
	root.AddCommand(generateCmd)

	// --- download command ----------------------------------------------------
	var dlOpts optionFlags
	var outDir string
	downloadCmd := &cobra.Command{
		Use:   "download [content]",
		Short: "Generate and save the image as qrcode.<format>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(configPath, args[0], dlOpts, outDir)
		},
	}
	dlOpts.register(downloadCmd)
	downloadCmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to save into (default download.dir)")
	root.AddCommand(downloadCmd)

	// --- endpoint command ----------------------------------------------------
	var endpointPort int
	endpointCmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Run the local stand-in image endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEndpoint(configPath, endpointPort)
		},
	}
	endpointCmd.Flags().IntVar(&endpointPort, "port", 8601, "Port to listen on")
	root.AddCommand(endpointCmd)

	// --- history command -----------------------------------------------------
	var historyLimit int
	var historyDownloads bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generations or downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(configPath, historyLimit, historyDownloads)
		},
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().BoolVar(&historyDownloads, "downloads", false, "Show downloads instead of generations")
	root.AddCommand(historyCmd)

	// --- version command -----------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("openclaw-qrgen %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and the .env file next to the process.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path, ".env")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// widgetDefaults converts configured defaults into validated widget defaults.
func widgetDefaults(cfg *config.Config) (qr.Defaults, error) {
	d := qr.Defaults{
		Size:       cfg.Defaults.Size,
		Format:     qr.Format(cfg.Defaults.Format),
		Foreground: cfg.Defaults.Color,
		Background: cfg.Defaults.BgColor,
	}
	if err := d.Validate(); err != nil {
		return qr.Defaults{}, fmt.Errorf("invalid defaults: %w", err)
	}
	return d, nil
}

// runServe is the main service entrypoint that wires all components together.
func runServe(configPath string) error {
	// 1. Load config
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	// 2. Setup logger
	log, logCloser := newLogger(cfg, os.Stdout)
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("starting openclaw-qrgen", "version", version, "port", cfg.Port, "base_endpoint", cfg.BaseEndpoint)

	// 3. Request builder, fixed for the life of the process
	builder, err := qr.NewBuilder(cfg.BaseEndpoint)
	if err != nil {
		return err
	}
	defaults, err := widgetDefaults(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Session registry with idle expiry
	sessions := qr.NewSessions(defaults, cfg.Sessions.Max)
	idle := cfg.Sessions.IdleTimeout.Duration
	qr.StartSweeper(ctx, sessions, idle/2, idle, log)

	// 5. Open history store
	srv := &api.Server{
		Sessions:   sessions,
		Builder:    builder,
		Downloader: qr.NewDownloader(cfg.Download.Timeout.Duration, "", log),
		Log:        log,
		Version:    version,
		StartTime:  time.Now(),
	}
	if cfg.History.Enabled {
		history, err := store.NewHistoryStore(cfg.HistoryPath())
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer history.Close()
		srv.History = history
	}

	// 6. Start HTTP servers
	servers := []*http.Server{{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(srv),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}}
	if cfg.StandIn.Enabled {
		servers = append(servers, &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.StandIn.Port),
			Handler:     endpoint.NewRouter(log),
			ReadTimeout: 30 * time.Second,
		})
		log.Info("stand-in endpoint enabled", "port", cfg.StandIn.Port)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, hs := range servers {
		hs := hs
		group.Go(func() error {
			log.Info("HTTP server listening", "addr", hs.Addr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server %s: %w", hs.Addr, err)
			}
			return nil
		})
	}

	log.Info("widget is running", "url", fmt.Sprintf("http://localhost:%d/", cfg.Port))

	// 7. Wait for shutdown signal or a server failure
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, hs := range servers {
			if err := hs.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", "addr", hs.Addr, "error", err)
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("goodbye")
	return nil
}

// newCLISession builds a session from config defaults and flag overrides.
func newCLISession(cfg *config.Config, content string, o optionFlags) (*qr.Session, error) {
	defaults, err := widgetDefaults(cfg)
	if err != nil {
		return nil, err
	}
	sess := qr.NewSession(defaults)
	sess.SetContent(content)
	if o.size != 0 {
		if err := sess.SetSize(o.size); err != nil {
			return nil, err
		}
	}
	if o.format != "" {
		if err := sess.SetFormat(o.format); err != nil {
			return nil, err
		}
	}
	if o.color != "" {
		if err := sess.SetForeground(o.color); err != nil {
			return nil, err
		}
	}
	if o.bgcolor != "" {
		if err := sess.SetBackground(o.bgcolor); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// runGenerate prints the request URL. Empty content prints nothing.
func runGenerate(configPath, content string, o optionFlags) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	builder, err := qr.NewBuilder(cfg.BaseEndpoint)
	if err != nil {
		return err
	}
	sess, err := newCLISession(cfg, content, o)
	if err != nil {
		return err
	}

	if u, ok := sess.Generate(builder); ok {
		fmt.Println(u)
	}
	return nil
}

// runDownload generates the URL and saves the image into outDir.
func runDownload(configPath, content string, o optionFlags, outDir string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log, logCloser := cliLogger(cfg)
	defer logCloser.Close()

	builder, err := qr.NewBuilder(cfg.BaseEndpoint)
	if err != nil {
		return err
	}
	sess, err := newCLISession(cfg, content, o)
	if err != nil {
		return err
	}
	if _, ok := sess.Generate(builder); !ok {
		return nil
	}
	if outDir == "" {
		outDir = cfg.Download.Dir
	}

	st := sess.Snapshot()
	dl := qr.NewDownloader(cfg.Download.Timeout.Duration, "", log)
	res := dl.Download(context.Background(), st.GeneratedURL, st.Format, qr.DirSaver{Dir: outDir})

	if cfg.History.Enabled {
		if err := recordCLIHistory(cfg, st, res); err != nil {
			log.Warn("failed to record history", "error", err)
		}
	}

	if res.Status == qr.DownloadFailed {
		return res.Err
	}
	fmt.Printf("saved %s (%d bytes)\n", res.Filename, res.Bytes)
	return nil
}

func recordCLIHistory(cfg *config.Config, st qr.State, res qr.DownloadResult) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}
	history, err := store.NewHistoryStore(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer history.Close()

	if err := history.SaveGeneration(&store.Generation{
		URL:     st.GeneratedURL,
		Content: st.Content,
		Size:    st.Size,
		Format:  string(st.Format),
		Color:   st.Foreground,
		BgColor: st.Background,
	}); err != nil {
		return err
	}
	d := &store.Download{
		URL:      res.URL,
		Filename: res.Filename,
		Bytes:    res.Bytes,
		Status:   string(res.Status),
	}
	if res.Err != nil {
		d.Error = res.Err.Error()
	}
	return history.SaveDownload(d)
}

// runEndpoint serves the stand-in image endpoint until interrupted.
func runEndpoint(configPath string, port int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log, logCloser := newLogger(cfg, os.Stdout)
	defer logCloser.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     endpoint.NewRouter(log),
		ReadTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("stand-in endpoint listening", "addr", srv.Addr, "base_endpoint", fmt.Sprintf("http://localhost:%d/", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("stand-in endpoint: %w", err)
	}
	return nil
}

// runHistory prints recent history entries, newest first.
func runHistory(configPath string, limit int, downloads bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	history, err := store.NewHistoryStore(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer history.Close()

	if downloads {
		dls, err := history.GetDownloads(limit, 0)
		if err != nil {
			return err
		}
		for _, d := range dls {
			fmt.Printf("%s  %-6s  %-11s  %6d  %s %s\n",
				time.UnixMilli(d.CreatedAt).Format(time.DateTime), d.Status, d.Filename, d.Bytes, d.URL, d.Error)
		}
		return nil
	}

	gens, err := history.GetGenerations(limit, 0)
	if err != nil {
		return err
	}
	for _, g := range gens {
		fmt.Printf("%s  %s\n", time.UnixMilli(g.CreatedAt).Format(time.DateTime), g.URL)
	}
	return nil
}
