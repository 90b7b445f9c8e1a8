package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fraudwatch/bootstrap"
	"fraudwatch/generator"
	"fraudwatch/pipeline"
	"fraudwatch/stress"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

type stressOptions struct {
	levelDuration time.Duration
	output        string
	outputJSON    bool
	quiet         bool
}

// newStressCmd creates the 'stress' subcommand
func newStressCmd(root *rootOptions) *cobra.Command {
	opts := &stressOptions{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Ramp synthetic load through the pipeline and find its saturation point",
		Long: `Run the configured load levels in ascending target order. Each level pushes
fraud-free batches at its target rate for its duration, then reports the
achieved throughput and push and processing latency percentiles.

A level is saturated when it achieves less than stress.saturation_ratio of
its target. Every level runs regardless; the first saturated level and the
peak sustained throughput are reported at the end. Interrupting the run
finishes the current level and reports the levels completed so far.`,
		Example: `  fraudwatch stress --level-duration 5s
  fraudwatch stress --output report.yaml
  fraudwatch stress --json > report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			sugar := root.sugar
			out := cmd.OutOrStdout()

			levels := cfg.StressLevels(opts.levelDuration)
			if err := stress.ValidateLevels(levels); err != nil {
				return err
			}

			engine, err := bootstrap.InitEngine(cfg, sugar)
			if err != nil {
				return err
			}
			tracker := bootstrap.InitTracker(cfg)
			memory := pipeline.NewMemory(sugar)
			defer memory.Close()
			gen := generator.New(0, cfg.Generator.Seed)

			interactive := !opts.outputJSON && !opts.quiet
			var s *spinner.Spinner
			controller := stress.NewController(memory, gen, tracker, stress.Options{
				SaturationRatio: cfg.Stress.SaturationRatio,
				Engine:          engine,
				Logger:          sugar,
				OnLevelStart: func(index, total int, lvl stress.Level) {
					if !interactive {
						return
					}
					s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
					s.Suffix = fmt.Sprintf(" Level %d/%d: %d events/s, batch %d, for %s",
						index+1, total, lvl.TargetTPS, lvl.BatchSize, lvl.Duration)
					s.Start()
				},
				OnLevelDone: func(r stress.LevelResult) {
					if s != nil {
						s.Stop()
						s = nil
					}
					if interactive {
						renderLevelLine(out, r)
					}
				},
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if interactive {
				headerColor.Fprintln(out, "=== fraudwatch stress test ===")
				fmt.Fprintf(out, "%d levels, saturation below %.0f%% of target\n\n", len(levels), cfg.Stress.SaturationRatio*100)
			}

			started := time.Now()
			results, summary := controller.Run(ctx, levels)
			report := stress.NewReport(started, cfg.Stress.SaturationRatio, len(levels), results, summary)

			if opts.output != "" {
				if err := report.WriteFile(opts.output); err != nil {
					return err
				}
				sugar.Infow("Stress report written", "path", opts.output, "run_id", report.RunID)
			}

			if opts.outputJSON {
				data, err := report.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if !opts.quiet {
				fmt.Fprintln(out)
				renderStressReport(out, report)
				if opts.output != "" {
					successColor.Fprintf(out, "\n✓ Report written to %s\n", opts.output)
				}
			}

			if report.Partial && !opts.quiet {
				warningColor.Fprintf(out, "Run interrupted: %d of %d levels completed\n", len(results), len(levels))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.levelDuration, "level-duration", 0, "Override the duration of every level")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to a file (.json for JSON, YAML otherwise)")
	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Suppress progress and table output")

	return cmd
}
