package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/arcsign/internal/core/config"
	"github.com/vietddude/arcsign/internal/infra/notify"
	"github.com/vietddude/arcsign/internal/infra/site"
	"github.com/vietddude/arcsign/internal/metrics"
	"github.com/vietddude/arcsign/internal/signin"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath  string
	isDebug  bool
	noNotify bool
)

var rootCmd = &cobra.Command{
	Use:   "arcsign",
	Short: "Daily Arctime sign-in",
	Long: `arcsign logs in to Arctime, performs the daily sign-in unless it is already done,
and optionally reports the result by email. It exits 0 when today's sign-in is
confirmed and 1 otherwise.`,
	Run: runSignin,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform the daily sign-in (default command)",
	Run:   runSignin,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noNotify, "no-notify", false, "do not send the email report")
	rootCmd.AddCommand(runCmd)
}

// loadConfig loads .env and the config file. The default path may be absent.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	_ = godotenv.Load()
	optional := !cmd.Flags().Changed("config")
	return config.Load(cfgPath, optional)
}

func setupLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

func runSignin(cmd *cobra.Command, args []string) {
	os.Exit(signinMain(cmd))
}

// signinMain runs the sign-in and returns the process exit code.
func signinMain(cmd *cobra.Command) int {
	cfg, err := loadConfig(cmd)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		return 1
	}
	setupLogging(cfg)

	if cfg.Credential.Empty() {
		slog.Warn("Credentials not set", "username_env", config.EnvUsername, "password_env", config.EnvPassword)
	}

	var notifier notify.Notifier
	if !noNotify {
		mailCfg, err := notify.ConfigFromEnv()
		if err != nil {
			slog.Warn("Invalid email configuration, notification disabled", "error", err)
		} else {
			notifier = notify.New(mailCfg, slog.Default())
		}
	}

	sess, err := site.NewSession(cfg.Site, slog.Default())
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		return 1
	}
	defer func() {
		_ = sess.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("======== Arctime sign-in started ========", "config", cfgPath)
	report := signin.NewRunner(cfg, sess, notifier, slog.Default()).Run(ctx)
	slog.Info("======== Arctime sign-in finished ========",
		"outcome", report.Outcome,
		"duration", report.Duration.Round(time.Millisecond),
	)

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		host, _ := os.Hostname()
		if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, host); err != nil {
			slog.Warn("Failed to push metrics", "error", err)
		}
		cancel()
	}

	return report.Outcome.ExitCode()
}
