package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/orrery/internal/config"
	"github.com/papapumpkin/orrery/internal/corpus"
	"github.com/papapumpkin/orrery/internal/drift"
	"github.com/papapumpkin/orrery/internal/index"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the corpus and re-index on change",
	Long: `Watches the corpus directory and rebuilds the index whenever a document
changes. With --sync, each change runs an incremental sync instead, which
also promotes unpromoted knowledge and resolves conflicts. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("sync", false, "run an incremental sync on each change")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	journal := openJournal(cfg)
	defer journal.Close()

	loader := corpus.NewLoader(cfg.CorpusDir)
	store := index.NewStore(cfg.IndexDir)

	var engine *drift.Engine
	if doSync, _ := cmd.Flags().GetBool("sync"); doSync {
		know, err := openKnowledge(cfg)
		if err != nil {
			return err
		}
		defer know.Close()
		engine = drift.New(loader, store, know, journal, cfg.StateDir)
	}

	w, err := corpus.NewWatcher(cfg.CorpusDir)
	if err != nil {
		return err
	}
	w.Debounce = cfg.WatchDebounce
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", cfg.CorpusDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			emit(journal, telemetry.Event{Kind: telemetry.KindWatchTriggered, Data: map[string]any{
				"file": change.File,
			}})
			handleChange(ctx, cmd, journal, loader, store, engine, change)
		}
	}
}

// handleChange reacts to one corpus change: an incremental sync when the
// drift engine is wired, a plain rebuild otherwise. Failures are reported
// and the loop keeps watching.
func handleChange(ctx context.Context, cmd *cobra.Command, journal *telemetry.Emitter, loader *corpus.Loader, store *index.Store, engine *drift.Engine, change corpus.Change) {
	if engine != nil {
		res, err := engine.IncrementalSync(ctx)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "sync: %v\n", err)
			return
		}
		if res.EntitiesUpdated > 0 || len(res.Conflicts) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: synced %d entities, %d conflicts\n", change.File, res.EntitiesUpdated, len(res.Conflicts))
		}
		return
	}

	meta, err := rebuild(journal, loader, store)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "reindex: %v\n", err)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: reindexed %d entities, %d relationships\n", change.File, meta.TotalEntities, meta.TotalRelationships)
}
