package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/mocktest/internal/api"
	"github.com/pavelanni/mocktest/internal/attempt"
	"github.com/pavelanni/mocktest/internal/gate"
	appI18n "github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/store"
	"github.com/pavelanni/mocktest/internal/tui"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mocktest",
		Short:        "Terminal client for SBI and IBPS mock tests",
		SilenceUsage: true,
		RunE:         runRoot,
	}

	pf := root.PersistentFlags()
	pf.String("api-url", "http://localhost:8000", "Backend base URL")
	pf.String("db", defaultDBPath(), "Local SQLite database path")
	pf.String("token", "", "Bearer token to use instead of the session cookie")
	pf.Duration("timeout", api.DefaultTimeout, "Timeout of each backend request")
	pf.Int("retries", api.DefaultRetry.Attempts, "Attempts for idempotent requests")
	pf.StringP("lang", "l", appI18n.DefaultLanguage, "Interface language (en, hi)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.String("log-file", "", "Write logs to this file (the interactive screens discard them otherwise)")

	root.Flags().Bool("subject", false, "Open the subject-wise test list")

	root.AddCommand(
		loginCmd(), signupCmd(), logoutCmd(), forgotPasswordCmd(), profileCmd(),
		testsCmd(), takeCmd(), previewCmd(), abandonCmd(), syllabusCmd(), devserverCmd(),
	)
	return root
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mocktest.db"
	}
	return filepath.Join(dir, "mocktest", "mocktest.db")
}

// setupLogging configures the default logger. Interactive commands pass
// interactive=true: their logs go to --log-file or nowhere, since stderr
// is covered by the alternate screen.
func setupLogging(cmd *cobra.Command, interactive bool) (io.Closer, error) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if path := v.GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	} else if interactive {
		out = io.Discard
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
	return closer, nil
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MOCKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mocktest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mocktest")
	v.AddConfigPath("/etc/mocktest")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// client bundles what every backend-facing command needs.
type client struct {
	ctx     context.Context
	v       *viper.Viper
	store   *store.Store
	api     *api.Client
	tracker *attempt.Tracker
	logs    io.Closer
}

// openClient sets up logging, i18n, local storage and the API client.
func openClient(cmd *cobra.Command, interactive bool) (*client, error) {
	logs, err := setupLogging(cmd, interactive)
	if err != nil {
		return nil, err
	}
	v := viperForCmd(cmd)

	if err := appI18n.Init(appI18n.DefaultLanguage); err != nil {
		logs.Close()
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLanguage(cmd.Context(), v.GetString("lang"))

	dbPath := v.GetString("db")
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			logs.Close()
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	st, err := store.New(dbPath)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	var creds api.CredentialProvider = api.NewCookieCredentials(st)
	if tok := v.GetString("token"); tok != "" {
		creds = &api.BearerCredentials{Token: tok}
	}
	retry := api.DefaultRetry
	if n := v.GetInt("retries"); n > 0 {
		retry.Attempts = n
	}
	c := &client{
		ctx:     ctx,
		v:       v,
		store:   st,
		api:     api.New(v.GetString("api-url"), creds, api.WithTimeout(v.GetDuration("timeout")), api.WithRetry(retry)),
		tracker: attempt.New(st),
		logs:    logs,
	}
	slog.Debug("client ready", "api_url", v.GetString("api-url"), "db", dbPath, "bearer", v.GetString("token") != "")
	return c, nil
}

func (c *client) Close() {
	if err := c.store.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
	c.logs.Close()
}

// requireSession checks the stored credentials with the backend.
func (c *client) requireSession() (model.Profile, error) {
	p, err := gate.NewSession(c.api, c.api.Credentials()).Check(c.ctx)
	if err != nil {
		if api.IsAuth(err) {
			return model.Profile{}, errors.New(appI18n.T(c.ctx, "NoticeSignIn"))
		}
		return model.Profile{}, err
	}
	return p, nil
}

func (c *client) tuiOptions() tui.Options {
	return tui.Options{
		Backend:  c.api,
		Attempts: c.tracker,
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, true)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.requireSession(); err != nil {
		return err
	}
	opts := c.tuiOptions()
	if c.v.GetBool("subject") {
		opts.Kind = model.KindSubject
	}
	return tui.Run(c.ctx, opts)
}
