package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kartoza/antiox-predictor/internal/config"
	"github.com/kartoza/antiox-predictor/internal/form"
	"github.com/kartoza/antiox-predictor/internal/history"
	"github.com/kartoza/antiox-predictor/internal/predict"
	"github.com/kartoza/antiox-predictor/internal/server"
	"github.com/kartoza/antiox-predictor/internal/terminal"
	"github.com/spf13/cobra"
	webview "github.com/webview/webview_go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

var (
	configFile string
	loader     *config.Loader
	cfg        config.Config
	logger     *zap.Logger
)

// errPredictionFailed is returned once the failure has already been shown
var errPredictionFailed = errors.New("prediction failed")

var rootCmd = &cobra.Command{
	Use:   "antiox",
	Short: "Anti-oxidation predictor",
	Long: `Predicts anti-oxidation from a sample's colour (RGB), sugar content (Brix)
and hardness by calling a prediction service over HTTP.

Without a subcommand the web form is served and opened in a window.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader = config.NewLoader(configFile)
		if err := loader.BindFlags(cmd.Flags()); err != nil {
			return err
		}
		var err error
		cfg, err = loader.Load()
		if err != nil {
			return err
		}
		cfg.Version = version

		zc := zap.NewProductionConfig()
		if cfg.Verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the prediction form (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Fill in the prediction form in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runPredict,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent predictions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the prediction service is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and exit",
	Args:  cobra.NoArgs,
	// no config or logger needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Anti-oxidation Predictor v%s\n", version)
	},
}

var (
	historyLimit int
	historyClear bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Config file (default: ./antiox.yaml or the user config dir)")
	pf.IntP("port", "p", 8080, "HTTP server port")
	pf.StringP("endpoint", "e", predict.DefaultEndpoint, "Prediction service URL")
	pf.String("data-dir", "", "Directory for settings and history (default: user config dir)")
	pf.Bool("headless", false, "Run in headless mode (no GUI window)")
	pf.Bool("history", true, "Keep a history of predictions")
	pf.BoolP("verbose", "v", false, "Enable debug logging")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete all stored predictions")

	rootCmd.AddCommand(serveCmd, predictCmd, historyCmd, healthCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient() *predict.Client {
	return predict.NewClient(cfg.Endpoint, predict.WithLogger(logger))
}

func runServe(cmd *cobra.Command, args []string) error {
	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Port, 10)
	if err != nil {
		return fmt.Errorf("failed to find available port: %w", err)
	}
	if availablePort != cfg.Port {
		logger.Info("Port in use, using another",
			zap.Int("requested", cfg.Port), zap.Int("port", availablePort))
	}
	cfg.Port = availablePort

	logger.Info("Anti-oxidation Predictor starting",
		zap.String("version", version),
		zap.Int("port", cfg.Port),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("data_dir", cfg.DataDir))

	client := newClient()
	srv, err := server.New(cfg, client, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	watchConfig(client)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	if cfg.Headless {
		return runHeadless(ctx, srv, serverURL)
	}
	return runWindow(ctx, srv, serverURL)
}

// watchConfig applies endpoint changes from the config file to the running client
func watchConfig(client *predict.Client) {
	watching := loader.Watch(func(next config.Config) {
		if next.Endpoint == client.Endpoint() {
			return
		}
		logger.Info("Prediction endpoint changed", zap.String("endpoint", next.Endpoint))
		client.SetEndpoint(next.Endpoint)
	}, func(err error) {
		logger.Warn("Ignoring invalid config change", zap.Error(err))
	})
	if watching {
		logger.Info("Watching config file", zap.String("file", loader.ConfigFile()))
	}
}

// runHeadless serves until a signal arrives or the server fails
func runHeadless(ctx context.Context, srv *server.Server, serverURL string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if waitForServer(gctx, serverURL, 10*time.Second) {
			logger.Info("Server ready", zap.String("url", serverURL))
		}
		<-gctx.Done()
		logger.Info("Shutting down...")
		return srv.Stop()
	})

	return g.Wait()
}

// runWindow opens the form in an embedded WebView window
func runWindow(ctx context.Context, srv *server.Server, serverURL string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	if !waitForServer(ctx, serverURL, 10*time.Second) && ctx.Err() != nil {
		return srv.Stop()
	}

	logger.Info("Opening application window...")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Anti-oxidation Predictor")
	w.SetSize(720, 860, webview.HintNone)
	w.Navigate(serverURL)

	// The watcher must be finished before the window is destroyed
	done := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		closeWindowOn(ctx, errCh, done, func() { w.Dispatch(w.Terminate) })
	}()

	// Run blocks until the window is closed
	w.Run()
	close(done)
	<-watcherDone

	logger.Info("Window closed, shutting down server...")
	return srv.Stop()
}

// closeWindowOn calls terminate when a signal arrives or the server fails
// while the window is open. Once done is closed it returns without calling it.
func closeWindowOn(ctx context.Context, errCh <-chan error, done <-chan struct{}, terminate func()) {
	select {
	case <-done:
		return
	case <-ctx.Done():
		logger.Info("Received signal, shutting down...")
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		logger.Error("Server error", zap.Error(err))
	}
	terminate()
}

func runPredict(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(cfg.DataDir)
	if err != nil {
		logger.Warn("Could not load settings", zap.Error(err))
	}

	client := newClient()
	recorders := form.Recorders{
		config.SettingsRecorder{DataDir: cfg.DataDir, Endpoint: client.Endpoint},
	}
	if cfg.History {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logger.Warn("History store not available", zap.Error(err))
		} else {
			defer store.Close()
			recorders = append(recorders, store)
		}
	}

	view := terminal.NewView(cmd.OutOrStdout(), terminal.NewSurveyPrompter())
	ctrl := form.NewController(client, view,
		form.WithRecorder(recorders),
		form.WithLogger(logger))

	_, err = terminal.Run(cmd.Context(), view, ctrl, settings.Prefill())
	return predictExit(cmd, err)
}

// predictExit maps the outcome of a terminal prediction to the command
// result. Failures already shown by the view are not printed again.
func predictExit(cmd *cobra.Command, err error) error {
	var verr *predict.ValidationError
	var rerr *predict.RequestError
	switch {
	case err == nil, errors.Is(err, terminal.ErrAborted):
		return nil
	case errors.As(err, &verr), errors.As(err, &rerr):
		cmd.SilenceErrors = true
		return errPredictionFailed
	default:
		return err
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	if historyClear {
		n, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d predictions\n", n)
		return nil
	}

	entries, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	terminal.PrintHistory(cmd.OutOrStdout(), entries)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	client := newClient()
	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("prediction service at %s: %w", client.Endpoint(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: status=%s model_loaded=%t\n",
		client.Endpoint(), health.Status, health.ModelLoaded)
	return nil
}

// waitForServer polls until the server is accepting connections. It gives up
// early when ctx is done.
func waitForServer(ctx context.Context, url string, timeout time.Duration) bool {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	logger.Warn("Server may not be ready", zap.String("url", url))
	return false
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
