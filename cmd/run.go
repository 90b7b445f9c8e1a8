package cmd

import (
	"fmt"
	"io"
	"time"

	"fraudwatch/bootstrap"
	"fraudwatch/config"

	"github.com/spf13/cobra"
)

type runOptions struct {
	mode      string
	fraudRate float64
	duration  time.Duration
	port      int
	seed      uint64
}

// newRunCmd creates the 'run' subcommand
func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the detection tick loop",
		Long: `Generate synthetic trades and orders, push them through the pipeline every
tick and evaluate the resulting aggregates for fraud.

In headless mode alerts are printed as they are raised and a summary is
printed on exit. In web mode the dashboard API and websocket feed are served
as well.`,
		Example: `  fraudwatch run --fraud-rate 0.1 --duration 30s
  fraudwatch run --mode web --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			flags := cmd.Flags()

			mode := config.Mode(opts.mode)
			if !mode.IsValid() {
				return fmt.Errorf("unknown mode %q, use headless or web", opts.mode)
			}
			if flags.Changed("fraud-rate") {
				cfg.Generator.FraudRate = opts.fraudRate
			}
			if flags.Changed("duration") {
				cfg.Tick.Duration = opts.duration
			}
			if flags.Changed("port") {
				cfg.API.Port = opts.port
			}
			if flags.Changed("seed") {
				cfg.Generator.Seed = opts.seed
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			app, err := bootstrap.NewApp(cfg, mode, root.sugar)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			out := cmd.OutOrStdout()
			app.AlertOut = out

			printRunHeader(out, cfg, mode)

			if err := app.Start(cmd.Context()); err != nil {
				app.Shutdown()
				return fmt.Errorf("failed to start application: %w", err)
			}

			app.WaitForShutdown()
			app.Shutdown()

			renderRunSummary(out, app)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", string(config.ModeHeadless), "Run mode: headless or web")
	cmd.Flags().Float64Var(&opts.fraudRate, "fraud-rate", 0, "Per-tick probability of injecting a fraud scenario (0-1)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "How long to run; 0 runs until interrupted")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Dashboard port (web mode)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Generator seed; 0 seeds from the clock")

	return cmd
}

func printRunHeader(w io.Writer, cfg *config.Config, mode config.Mode) {
	duration := "until interrupted"
	if cfg.Tick.Duration > 0 {
		duration = cfg.Tick.Duration.String()
	}

	headerColor.Fprintf(w, "=== fraudwatch (%s) ===\n", mode)
	fmt.Fprintf(w, "Fraud rate: %.0f%%, Duration: %s\n", cfg.Generator.FraudRate*100, duration)
	if mode == config.ModeWeb {
		infoColor.Fprintf(w, "Dashboard: http://%s\n", cfg.Address())
	}
	fmt.Fprintln(w)
}
