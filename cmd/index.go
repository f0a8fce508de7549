package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/orrery/internal/config"
	"github.com/papapumpkin/orrery/internal/corpus"
	"github.com/papapumpkin/orrery/internal/index"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the entity-relationship index from the corpus",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	journal := openJournal(cfg)
	defer journal.Close()

	meta, err := rebuild(journal, corpus.NewLoader(cfg.CorpusDir), index.NewStore(cfg.IndexDir))
	if err != nil {
		return err
	}

	for _, w := range meta.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s %s: %s\n", w.Kind, w.ID, w.Reason)
	}
	return writeJSON(cmd.OutOrStdout(), meta)
}

// rebuild loads the corpus, builds the index, and persists it, journaling
// the pass. Both the one-shot index command and the watch loop go through
// here.
func rebuild(journal *telemetry.Emitter, loader *corpus.Loader, store *index.Store) (*index.Metadata, error) {
	emit(journal, telemetry.Event{Kind: telemetry.KindIndexStart})

	snap, err := loader.Load()
	if err != nil {
		return nil, err
	}
	meta, err := store.Write(index.Build(snap))
	if err != nil {
		return nil, err
	}

	emit(journal, telemetry.Event{Kind: telemetry.KindIndexDone, Data: map[string]any{
		"entities":      meta.TotalEntities,
		"relationships": meta.TotalRelationships,
		"dangling":      len(meta.DanglingReferences),
	}})
	return meta, nil
}
