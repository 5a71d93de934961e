package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/CTAG07/Nepenthes/pkg/flash"
	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const defaultConfigPath = "./config.yaml"

// cliOptions holds the persistent flags shared by every command.
type cliOptions struct {
	configPath string
	logLevel   string
}

// load reads the configuration named by the flags, NEPENTHES_CONFIG_FILE or
// the default path, in that order.
func (o *cliOptions) load() (*Config, string, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("NEPENTHES_CONFIG_FILE")
	}
	if path == "" {
		path = defaultConfigPath
	}
	config, err := LoadConfig(viper.New(), path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		config.Server.LogLevel = o.logLevel
	}
	return config, path, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:   "nepenthes",
		Short: "Template rendering server for sites and their control panel",
		Long: `Nepenthes resolves, renders and namespaces templates for a site and its
control panel, and collects the CSS, JavaScript and HTML the rendered
templates ask for into the page head and foot.

Configuration is read from ./config.yaml (created with defaults on first run),
or the file named by --config or NEPENTHES_CONFIG_FILE. Every setting can be
overridden with NEPENTHES_<SECTION>_<OPTION>, e.g. NEPENTHES_SERVER_LOG_LEVEL.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ./config.yaml, can also use NEPENTHES_CONFIG_FILE)")
	root.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newRenderCmd(opts),
		newKeysCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nepenthes %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Run the site and API servers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(opts, watch)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "invalidate template caches when template files change (always on in dev mode)")
	return cmd
}

func newRenderCmd(opts *cliOptions) *cobra.Command {
	var (
		vars   map[string]string
		source string
		cp     bool
		locale string
	)
	cmd := &cobra.Command{
		Use:   "render [template]",
		Short: "Render a template to stdout",
		Long: `Render a template from the site template root, or from the control panel
root with --cp. With --string the template source is given on the command
line instead of a template name.`,
		Example: `  nepenthes render blog/index --var title=Hello
  nepenthes render --string '{{.name}}' --var name=World`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (source == "") {
				return errors.New("give either a template name or --string")
			}
			config, _, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), config.Server.LogLevel)
			rt, err := newRuntime(config, logger, afero.NewOsFs())
			if err != nil {
				return err
			}

			req := templating.Request{Kind: templating.ConsoleRequest, Locale: locale}
			if cp {
				req.Kind = templating.CPRequest
			}
			engineOpts := []templating.EngineOption{templating.WithURLs(rt.urls)}
			if locale != "" {
				engineOpts = append(engineOpts, templating.WithTranslator(rt.locales.Translator(locale)))
			}
			e := rt.env.NewEngine(req, engineOpts...)

			data := make(map[string]any, len(vars))
			for k, v := range vars {
				data[k] = v
			}
			var html string
			if source != "" {
				html, err = e.RenderString(source, data)
			} else {
				html, err = e.Render(args[0], data)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
			return err
		},
	}
	cmd.Flags().StringToStringVarP(&vars, "var", "v", nil, "template variable as key=value (repeatable)")
	cmd.Flags().StringVarP(&source, "string", "s", "", "render this template source instead of a named template")
	cmd.Flags().BoolVar(&cp, "cp", false, "resolve the template against the control panel root")
	cmd.Flags().StringVar(&locale, "locale", "", "locale to translate messages into")
	return cmd
}

func newKeysCmd(opts *cliOptions) *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}

	var (
		description string
		scopes      []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it",
		Long: `Create an API key. The raw key is printed once and cannot be recovered.
The first key ever created always gets the master scope "*".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, _, err := opts.load()
			if err != nil {
				return err
			}
			db, err := initDB(config.Server.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer func() {
				_ = db.Close()
			}()
			if err := setupAuthSchema(db); err != nil {
				return fmt.Errorf("failed to setup auth schema: %w", err)
			}
			key, err := createAPIKey(cmd.Context(), db, description, scopes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:     %d\n", key.ID)
			fmt.Fprintf(out, "scopes: %s\n", strings.Join(key.Scopes, " "))
			fmt.Fprintf(out, "key:    %s\n", key.RawKey)
			return nil
		},
	}
	create.Flags().StringVarP(&description, "description", "d", "", "what the key is for")
	create.Flags().StringSliceVar(&scopes, "scope", nil, "scope to grant (repeatable), e.g. templates:read")
	keys.AddCommand(create)
	return keys
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// serve runs server cycles until a shutdown is requested.
func serve(opts *cliOptions, watch bool) error {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan // Wait for a signal
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	for {
		action, err := run(opts, watch, actionChan)
		if err != nil {
			baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
			return err
		}

		if action != actionRestart {
			break
		}
		baseLogger.Info("--- Server Restarting ---")
	}

	baseLogger.Info("Nepenthes has shut down.")
	return nil
}

// run hosts both servers, and returns whenever the server is shutdown or restarted.
func run(opts *cliOptions, watch bool, actionChan chan string) (string, error) {
	config, configPath, err := opts.load()
	if err != nil {
		return "", err
	}

	logger := newLogger(os.Stdout, config.Server.LogLevel)
	logger.Info("Starting server cycle...", "config", configPath)

	if err := os.MkdirAll(filepath.Dir(config.Server.DatabasePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return "", fmt.Errorf("failed to initialize database: %w", err)
	}

	if err = setupAuthSchema(db); err != nil {
		logger.Error("Failed to setup auth schema", "error", err)
	}
	if err = flash.SetupSchema(db); err != nil {
		logger.Error("Failed to setup flash schema", "error", err)
	}

	cm := NewConfigManager(config, configPath, logger)
	server, err := NewServer(cm, logger, db, actionChan)
	if err != nil {
		_ = db.Close()
		return "", fmt.Errorf("failed to create server object: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if watch || config.Templates.DevMode {
		w, err := templating.NewWatcher(server.rt.env, 200*time.Millisecond,
			config.Templates.SiteTemplatesPath, config.Templates.CPTemplatesPath, config.Server.PluginsPath)
		if err != nil {
			logger.Error("Failed to start template watcher", "error", err)
		} else {
			go func() {
				_ = w.Run(ctx)
			}()
		}
	}

	if maxAge := time.Duration(config.Server.FlashMaxAgeHours) * time.Hour; maxAge > 0 {
		go expireFlashes(ctx, server.flashes, maxAge, logger)
	}

	siteHttpServer := &http.Server{Addr: config.Server.ServerAddr, Handler: server.siteMux}
	apiHttpServer := &http.Server{Addr: config.Server.ApiAddr, Handler: server.apiMux}

	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
		}
	}()

	go func() {
		logger.Info("Starting Nepenthes site server", "address", siteHttpServer.Addr)
		if err := siteHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Site server failed", "error", err)
		}
	}()

	action := <-actionChan // Block here until API or OS signal sends an action.

	logger.Info("Stopping servers for " + action + "...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = apiHttpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	if err = siteHttpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Site server shutdown failed", "error", err)
	}
	logger.Info("HTTP servers stopped.")

	server.Close()
	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	return action, nil
}

// expireFlashes periodically removes flashes nobody picked up.
func expireFlashes(ctx context.Context, store *flash.Store, maxAge time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.Expire(ctx, maxAge); err != nil {
				logger.Error("Failed to expire flashes", "error", err)
			}
		}
	}
}
