/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	bind            string
	envFile         string
	gameDuration    time.Duration
	leaderboardSize int
	port            int
	prefix          string
	profile         bool
	questions       string
	relayTimeout    time.Duration
	relayURL        string
	resultsDSN      string
	resultsDriver   string
	sessionTimeout  time.Duration
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool
	watch           bool

	logger *zap.SugaredLogger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.gameDuration <= 0 {
		return fmt.Errorf("invalid game duration (must be positive): %s", c.gameDuration)
	}
	if c.relayTimeout <= 0 {
		return fmt.Errorf("invalid relay timeout (must be positive): %s", c.relayTimeout)
	}
	if c.leaderboardSize < 1 {
		return fmt.Errorf("invalid leaderboard size (must be at least 1): %d", c.leaderboardSize)
	}
	switch c.resultsDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid results driver (must be sqlite or postgres): %q", c.resultsDriver)
	}
	if c.resultsDriver == "postgres" && c.resultsDSN == "" {
		return errors.New("--results-dsn is required with --results-driver=postgres")
	}
	if c.watch && c.questions == "" {
		return errors.New("--watch requires --questions")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// loadEnvFile reads KEY=value pairs into the environment before flags are
// resolved. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// envFilePath picks the env file before the environment is bound to flags,
// so TRIVIABINGO_ENV_FILE is read directly.
func envFilePath(fs *pflag.FlagSet, path string) string {
	if fs.Changed("env-file") {
		return path
	}
	if v, ok := os.LookupEnv("TRIVIABINGO_ENV_FILE"); ok {
		return v
	}
	return path
}

func bindFlags(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix("TRIVIABINGO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "triviabingo",
		Short:         "A timed trivia bingo game, served as a single webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.envFile = envFilePath(cmd.Flags(), cfg.envFile)

			if err := loadEnvFile(cfg.envFile); err != nil {
				return err
			}

			// Environment values only apply to flags not set on the command line.
			bindFlags(cmd.Flags())

			logger, err := newLogger(cfg.verbose)
			if err != nil {
				return err
			}
			cfg.logger = logger

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			defer func() { _ = cfg.logger.Sync() }()

			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.envFile, "env-file", ".env", "file of KEY=value pairs to load into the environment (env: TRIVIABINGO_ENV_FILE)")
	fs.StringVarP(&cfg.questions, "questions", "q", "", "path to a .yaml or .json question bank (default: built-in bank) (env: TRIVIABINGO_QUESTIONS)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRIVIABINGO_VERBOSE)")

	lf := cmd.Flags()

	lf.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIABINGO_BIND)")
	lf.DurationVar(&cfg.gameDuration, "game-duration", 10*time.Minute, "time allowed to answer a board (env: TRIVIABINGO_GAME_DURATION)")
	lf.IntVar(&cfg.leaderboardSize, "leaderboard-size", 10, "number of results shown on the leaderboard (env: TRIVIABINGO_LEADERBOARD_SIZE)")
	lf.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRIVIABINGO_PORT)")
	lf.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRIVIABINGO_PREFIX)")
	lf.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRIVIABINGO_PROFILE)")
	lf.DurationVar(&cfg.relayTimeout, "relay-timeout", 10*time.Second, "timeout for relaying a result (env: TRIVIABINGO_RELAY_TIMEOUT)")
	lf.StringVar(&cfg.relayURL, "relay-url", "", "endpoint that finished results are posted to as a form (env: TRIVIABINGO_RELAY_URL)")
	lf.StringVar(&cfg.resultsDSN, "results-dsn", "", "sqlite path or postgres url for stored results (default: in-memory sqlite) (env: TRIVIABINGO_RESULTS_DSN)")
	lf.StringVar(&cfg.resultsDriver, "results-driver", "sqlite", "results store: sqlite or postgres (env: TRIVIABINGO_RESULTS_DRIVER)")
	lf.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle games are ended (env: TRIVIABINGO_SESSION_TIMEOUT)")
	lf.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRIVIABINGO_TLS_CERT)")
	lf.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRIVIABINGO_TLS_KEY)")
	lf.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRIVIABINGO_VERSION)")
	lf.BoolVar(&cfg.watch, "watch", false, "reload the question bank when it changes on disk (env: TRIVIABINGO_WATCH)")

	cmd.AddCommand(newSelfTestCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("triviabingo v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
