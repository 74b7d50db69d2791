package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yukia3e/evm-contract-deployer/internal/config"
)

const packageName = "cmd"

var (
	rawLogLevel string
	envFiles    []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deployer",
	Short: "Deploys compiled contracts to an EVM chain.",
	Long: `Deployer signs contract creation transactions with a local key or a Cloud KMS key,
sends them to an EVM node and checks the reported contract address against the
address derived from the sender and nonce.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// APP_ENV can come from an env file, so load it before the logger reads it.
		config.LoadDotEnv(envFiles...)
		setupLogger(rawLogLevel, cmd.Flags().Changed("log-level"))
	},
}

// loggerSettings picks the level and output for APP_ENV. Staging and
// production write JSON; everything else writes to a console writer.
// A local environment logs at debug unless the level was set explicitly.
func loggerSettings(rawLevel string, explicitLevel bool) (level zerolog.Level, console bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(rawLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if !explicitLevel && config.IsLocal() {
		level = zerolog.DebugLevel
	}

	console = !(config.IsStaging() || config.IsProduction())
	return level, console
}

func setupLogger(rawLevel string, explicitLevel bool) {
	level, console := loggerSettings(rawLevel, explicitLevel)
	zerolog.SetGlobalLevel(level)
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rawLogLevel, "log-level", "l", "info", "Logging level")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load before reading configuration (default .env when present)")
}
