// Package cmd provides the fraudwatch command-line interface.
package cmd

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"fraudwatch/bootstrap"
	"fraudwatch/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// rootOptions holds the persistent flags and what PersistentPreRunE builds
// from them
type rootOptions struct {
	configFile string
	logLevel   string
	noColor    bool

	cfg    *config.Config
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewRootCmd creates the fraudwatch command with all subcommands
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "fraudwatch",
		Short: "Real-time trade fraud detection and pipeline stress testing",
		Long: `fraudwatch turns windowed trade and order aggregates into severity-tiered
fraud alerts, tracks end-to-end pipeline latency, and ramps synthetic load
to find the pipeline's throughput ceiling.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file path (default: search ./config.yaml and ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newStressCmd(opts))

	return rootCmd
}

func (o *rootOptions) setup() error {
	if o.noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	logger, sugar, err := bootstrap.InitLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		sugar.Infow("Config loaded", "file", used)
	} else {
		sugar.Info("No config file found, using defaults and env vars")
	}

	o.cfg = cfg
	o.logger = logger
	o.sugar = sugar
	return nil
}

// printSection prints a section header
func printSection(w io.Writer, title string) {
	headerColor.Fprintf(w, "  %s\n", title)
	headerColor.Fprintln(w, "  "+strings.Repeat("─", utf8.RuneCountInString(title)))
}

// printField prints a key-value field
func printField(w io.Writer, key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Fprintf(w, "  %-25s %s\n", key+":", value)
}

// formatBool returns a colored yes/no
func formatBool(b bool) string {
	if b {
		return color.New(color.FgGreen).Sprint("Yes")
	}
	return color.New(color.FgRed).Sprint("No")
}
