// File: cmd/soak.go
package cmd

import (
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/loopguard/internal/observability"
	"github.com/xkilldash9x/loopguard/internal/soak"
)

// newSoakCmd creates the `soak` command.
func newSoakCmd() *cobra.Command {
	cfg := soak.DefaultConfig()

	soakCmd := &cobra.Command{
		Use:   "soak",
		Short: "Runs a simulated-time soak test against fake backends and prints a JSON report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := soak.Run(cmd.Context(), cfg, observability.GetLogger())
			if err != nil {
				return fmt.Errorf("soak run failed: %w", err)
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode soak report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	f := soakCmd.Flags()
	f.Uint64Var(&cfg.Ticks, "ticks", cfg.Ticks, "Maximum number of ticks to execute.")
	f.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Simulated time between ticks.")
	f.DurationVar(&cfg.CheckInterval, "check-interval", cfg.CheckInterval, "Trigger period. Defaults to --interval.")
	f.IntVar(&cfg.ConsecutiveChecks, "consecutive-checks", cfg.ConsecutiveChecks, "Stable checks required before acting.")
	f.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "Minimum simulated time between activations.")
	f.DurationVar(&cfg.MaxRuntime, "max-runtime", cfg.MaxRuntime, "Simulated runtime guardrail. Zero disables it.")
	f.IntVar(&cfg.Downscale, "downscale", cfg.Downscale, "Hash sampling stride.")
	f.Uint64Var(&cfg.FlipEvery, "flip-every", cfg.FlipEvery, "Change the region content every n ticks.")
	f.Uint64Var(&cfg.FailEvery, "fail-every", cfg.FailEvery, "Fail typing on every n-th tick.")
	f.BoolVar(&cfg.UseLLM, "llm", cfg.UseLLM, "Generate the typed text with the mock LLM.")
	return soakCmd
}
