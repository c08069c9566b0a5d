// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/loopguard/api/schemas"
	"github.com/xkilldash9x/loopguard/internal/alarm"
	"github.com/xkilldash9x/loopguard/internal/backend"
	"github.com/xkilldash9x/loopguard/internal/config"
	"github.com/xkilldash9x/loopguard/internal/eventbus"
	"github.com/xkilldash9x/loopguard/internal/journal"
	"github.com/xkilldash9x/loopguard/internal/llmclient"
	"github.com/xkilldash9x/loopguard/internal/observability"
	"github.com/xkilldash9x/loopguard/internal/ocr"
	"github.com/xkilldash9x/loopguard/internal/profile"
	"github.com/xkilldash9x/loopguard/internal/runner"
)

// newRunCmd creates the `run` command.
func newRunCmd() *cobra.Command {
	var printEvents bool

	runCmd := &cobra.Command{
		Use:   "run [profile-id...]",
		Short: "Runs profiles until they stop themselves or the process is interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			doc, err := profile.Load(cfg.Profiles.Path)
			if err != nil {
				return err
			}
			var profiles []profile.Profile
			for _, id := range slices.Compact(slices.Sorted(slices.Values(args))) {
				p, err := doc.Find(id)
				if err != nil {
					return err
				}
				profiles = append(profiles, p)
			}

			var events io.Writer
			if printEvents {
				events = cmd.OutOrStdout()
			}
			results, err := runProfiles(cmd.Context(), cfg, profiles, events, logger)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\trun=%s\tactivations=%d\tstopped_by=%s\n",
					r.ProfileID, r.RunID, r.Activations, r.StopReason)
			}
			return nil
		},
	}

	runCmd.Flags().BoolVar(&printEvents, "print-events", false, "Print every event as a JSON line on stdout.")
	return runCmd
}

// runResult summarizes one finished runner.
type runResult struct {
	ProfileID   string
	RunID       string
	StopReason  string
	Activations int
}

// runtimeServices holds the collaborators shared by every runner of a process.
type runtimeServices struct {
	Backend backend.Backend
	OCR     schemas.TextExtractor
	LLM     schemas.LLMClient
	Alarm   schemas.Alarm
	Bus     *eventbus.Bus
	Sinks   []journal.Sink
}

// initializeServices handles dependency injection for `run`.
func initializeServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runtimeServices, error) {
	svc := &runtimeServices{}

	be, err := backend.New(ctx, cfg.Backend, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", cfg.Backend.Kind, err)
	}
	svc.Backend = be

	if cfg.OCR.Enabled {
		t, err := ocr.NewTesseract(cfg.OCR, be, logger)
		if err != nil {
			// Profiles that need OCR are rejected when they are built.
			logger.Warn("OCR disabled.", zap.Error(err))
		} else {
			svc.OCR = ocr.NewCached(t, cfg.OCR.CacheSize, logger)
		}
	}

	svc.LLM, err = llmclient.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		svc.Shutdown(logger)
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	svc.Alarm = alarm.New(cfg.Alarm, logger)
	svc.Bus = eventbus.New(logger, cfg.Runner.EventBuffer)

	if cfg.Journal.Enabled {
		fileSink, err := journal.NewFileSink(cfg.Journal)
		if err != nil {
			svc.Shutdown(logger)
			return nil, err
		}
		svc.Sinks = append(svc.Sinks, fileSink)
	}
	if cfg.Journal.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Journal.PostgresURL)
		if err != nil {
			svc.Shutdown(logger)
			return nil, fmt.Errorf("failed to connect to journal database: %w", err)
		}
		pgSink, err := journal.NewPostgresSink(ctx, pool, logger)
		if err != nil {
			pool.Close()
			svc.Shutdown(logger)
			return nil, err
		}
		svc.Sinks = append(svc.Sinks, pgSink)
	}
	return svc, nil
}

// Shutdown releases whatever was initialized. Journal sinks are owned by the
// consumer once it runs, so this only closes them before that point.
func (s *runtimeServices) Shutdown(logger *zap.Logger) {
	if s.Bus != nil {
		s.Bus.Shutdown()
	}
	for _, sink := range s.Sinks {
		if err := sink.Close(); err != nil {
			logger.Warn("Error closing journal sink.", zap.Error(err))
		}
	}
	s.Sinks = nil
	if s.Backend != nil {
		if err := s.Backend.Close(); err != nil {
			logger.Warn("Error closing backend.", zap.Error(err))
		}
	}
}

// runProfiles builds and runs every profile concurrently and blocks until all
// runners have finished. A cancelled ctx stops the runners gracefully.
func runProfiles(ctx context.Context, cfg *config.Config, profiles []profile.Profile, events io.Writer, logger *zap.Logger) ([]runResult, error) {
	svc, err := initializeServices(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer svc.Shutdown(logger)

	builder := &profile.Builder{
		Capture:       svc.Backend,
		OCR:           svc.OCR,
		LLM:           svc.LLM,
		Alarm:         svc.Alarm,
		Logger:        logger,
		HashDownscale: cfg.Backend.HashDownscale,
		ActionDelay:   cfg.Runner.ActionDelay,
	}

	runners := make([]*runner.Runner, 0, len(profiles))
	for _, p := range profiles {
		m, regions, err := builder.Build(p)
		if err != nil {
			return nil, fmt.Errorf("profile '%s': %w", p.ID, err)
		}
		runID := uuid.New().String()
		r, err := runner.New(p.ID, m, regions, svc.Backend, svc.Backend, svc.Bus.Sink(runID, p.ID),
			runner.WithRunID(runID),
			runner.WithCadence(cfg.Runner.TickInterval),
			runner.WithAlarm(svc.Alarm),
			runner.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("profile '%s': %w", p.ID, err)
		}
		runners = append(runners, r)
	}

	// Observers drain until the bus shuts down so the final Stopped events
	// are recorded even after a signal.
	var g errgroup.Group
	if len(svc.Sinks) > 0 {
		ch, _ := svc.Bus.Subscribe()
		consumer := journal.NewConsumer(logger, svc.Sinks)
		svc.Sinks = nil
		g.Go(func() error { return consumer.Run(context.WithoutCancel(ctx), ch) })
	}
	if events != nil {
		ch, _ := svc.Bus.Subscribe()
		g.Go(func() error { return printEvents(events, ch) })
	}

	manager := runner.NewManager(logger)
	for _, r := range runners {
		if err := manager.Start(ctx, r); err != nil {
			manager.StopAll(false)
			svc.Bus.Shutdown()
			return nil, errors.Join(err, g.Wait())
		}
		logger.Info("Profile started.", zap.String("profile_id", r.ProfileID()), zap.String("run_id", r.RunID()))
	}

	for _, r := range runners {
		<-r.Done()
	}
	manager.StopAll(false)
	svc.Bus.Shutdown()
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("event observers failed: %w", err)
	}

	results := make([]runResult, len(runners))
	for i, r := range runners {
		results[i] = runResult{
			ProfileID:   r.ProfileID(),
			RunID:       r.RunID(),
			StopReason:  r.StopReason(),
			Activations: r.Monitor().Activations(),
		}
	}
	return results, nil
}

// printEvents writes each message as a journal record line.
func printEvents(w io.Writer, ch <-chan eventbus.Message) error {
	var writeErr error
	for msg := range ch {
		if writeErr != nil {
			continue
		}
		rec, err := journal.NewRecord(msg)
		if err != nil {
			writeErr = err
			continue
		}
		line, err := json.Marshal(rec)
		if err != nil {
			writeErr = err
			continue
		}
		if _, err := fmt.Fprintln(w, string(line)); err != nil {
			writeErr = err
		}
	}
	return writeErr
}
