package main

import (
	"fmt"

	"github.com/Sternrassler/matexport/internal/config"
	"github.com/Sternrassler/matexport/pkg/export"
	"github.com/Sternrassler/matexport/pkg/logging"
	"github.com/Sternrassler/matexport/pkg/metrics"
	"github.com/Sternrassler/matexport/pkg/tokencache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds the state shared by all subcommands of one invocation.
type app struct {
	configFile string
	envFile    string
	logLevel   string
	outputDir  string
	textfile   string
	cacheMode  string

	cfg    config.Config
	store  tokencache.Store
	redis  *redis.Client
	writer *export.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "matexport",
		Short:        "Export construction material listings to dated JSON files",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./matexport.yaml or $HOME/.matexport/matexport.yaml)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file with credentials")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&a.outputDir, "output-dir", "o", "", "directory for exported files")
	flags.StringVar(&a.textfile, "metrics-textfile", "", "write Prometheus metrics to this node_exporter textfile")
	flags.StringVar(&a.cacheMode, "token-cache", "", "token cache backend (file, redis, none)")

	root.AddCommand(
		newDuspotCmd(a),
		newInsertCmd(a),
		newMatchingMaterialsCmd(a),
		newAllCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads configuration and sets up logging, the token cache and the
// export writer.
func (a *app) init(cmd *cobra.Command) error {
	overrides := map[string]any{}
	if a.logLevel != "" {
		overrides["log.level"] = a.logLevel
	}
	if a.outputDir != "" {
		overrides["output.dir"] = a.outputDir
	}
	if a.textfile != "" {
		overrides["metrics.textfile"] = a.textfile
	}
	if a.cacheMode != "" {
		overrides["token_cache.backend"] = a.cacheMode
	}

	cfg, err := config.Load(config.Options{File: a.configFile, EnvFile: a.envFile, Overrides: overrides})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Setup(logging.Config{Level: level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})

	switch cfg.TokenCache.Backend {
	case config.BackendFile:
		a.store = tokencache.NewFileStore(cfg.TokenCache.Path)
	case config.BackendRedis:
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.TokenCache.RedisAddr})
		if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.TokenCache.RedisAddr, err)
		}
		a.store = tokencache.NewRedisStore(a.redis)
	}

	a.writer = export.NewWriter(cfg.Output.Dir)

	log.Debug().
		Str("config_file", a.configFile).
		Str("token_cache", cfg.TokenCache.Backend).
		Str("output_dir", cfg.Output.Dir).
		Msg("Configuration loaded")
	return nil
}

// run wraps a command so the token cache is closed and metrics are written
// whether or not the command succeeds.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if closeErr := a.close(); err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) close() error {
	if a.redis != nil {
		a.redis.Close()
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return err
	}
	return nil
}
