// File: cmd/events.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/journal"
	"github.com/xkilldash9x/loopguard/internal/observability"
)

// newEventsCmd creates the `events` command group.
func newEventsCmd() *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspects the event journal",
	}
	eventsCmd.AddCommand(newEventsTailCmd())
	return eventsCmd
}

// tailFilter selects journal records.
type tailFilter struct {
	profileID string
	runID     string
	types     map[string]struct{}
}

func (f tailFilter) match(rec journal.Record) bool {
	if f.profileID != "" && rec.ProfileID != f.profileID {
		return false
	}
	if f.runID != "" && rec.RunID != f.runID {
		return false
	}
	if len(f.types) > 0 {
		if _, ok := f.types[rec.Type]; !ok {
			return false
		}
	}
	return true
}

func newEventsTailCmd() *cobra.Command {
	var (
		follow    bool
		path      string
		profileID string
		runID     string
		types     []string
	)

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Prints journal events, optionally following new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Journal.Path
			}

			filter := tailFilter{profileID: profileID, runID: runID}
			if len(types) > 0 {
				filter.types = make(map[string]struct{}, len(types))
				for _, t := range types {
					filter.types[t] = struct{}{}
				}
			}
			return tailJournal(cmd.Context(), path, follow, filter, cmd.OutOrStdout(), observability.GetLogger())
		},
	}

	tailCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing events as they are appended.")
	tailCmd.Flags().StringVar(&path, "path", "", "Journal file. Defaults to journal.path.")
	tailCmd.Flags().StringVar(&profileID, "profile", "", "Only show events of this profile.")
	tailCmd.Flags().StringVar(&runID, "run", "", "Only show events of this run.")
	tailCmd.Flags().StringSliceVar(&types, "type", nil, "Only show these event types (e.g. WatchdogTripped,Error).")
	return tailCmd
}

// tailJournal prints matching records from the journal at path. Without
// follow it stops at the end of the file.
func tailJournal(ctx context.Context, path string, follow bool, filter tailFilter, out io.Writer, logger *zap.Logger) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: !follow,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail journal %s: %w", path, err)
	}
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read journal: %w", line.Err)
			}
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			rec, ev, err := journal.DecodeRecord([]byte(text))
			if err != nil {
				logger.Warn("Skipping malformed journal line.", zap.Error(err))
				continue
			}
			if !filter.match(rec) {
				continue
			}
			fmt.Fprintln(out, formatRecord(rec, ev))
		}
	}
}

// formatRecord renders one record as a single human-readable line.
func formatRecord(rec journal.Record, ev schemas.Event) string {
	var detail string
	switch e := ev.(type) {
	case schemas.MonitorStateChanged:
		detail = string(e.State)
	case schemas.WatchdogTripped:
		detail = "reason=" + e.Reason
	case schemas.ErrorEvent:
		detail = e.Message
	case schemas.ActionStarted:
		detail = e.Action
	case schemas.ActionCompleted:
		detail = fmt.Sprintf("%s success=%t", e.Action, e.Success)
	case schemas.TerminationCheckTriggered:
		detail = fmt.Sprintf("%s reason=%s", e.CheckType, e.Reason)
	case schemas.ConditionEvaluated:
		detail = fmt.Sprintf("result=%t", e.Result)
	case schemas.MonitorTick:
		detail = fmt.Sprintf("next_check_ms=%d cooldown_remaining_ms=%d condition_met=%t",
			e.NextCheckMs, e.CooldownRemainingMs, e.ConditionMet)
	}
	line := fmt.Sprintf("%s %s #%d %s", rec.At.Format("2006-01-02T15:04:05.000Z07:00"), rec.ProfileID, rec.Seq, rec.Type)
	if detail != "" {
		line += " " + detail
	}
	return line
}
