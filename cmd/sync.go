package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/orrery/internal/config"
	"github.com/papapumpkin/orrery/internal/corpus"
	"github.com/papapumpkin/orrery/internal/drift"
	"github.com/papapumpkin/orrery/internal/index"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the corpus, the index, and the knowledge store",
	Long: `Runs the drift engine. A full sync re-indexes changed corpus documents,
promotes unpromoted knowledge, and resolves conflicts; an incremental sync
does the same only when drift is detected; --detect reports drift without
changing anything. The default is a full sync.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("full", false, "run a full sync (the default)")
	syncCmd.Flags().Bool("incremental", false, "sync only when drift is detected")
	syncCmd.Flags().Bool("detect", false, "report drift without syncing")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	know, err := openKnowledge(cfg)
	if err != nil {
		return err
	}
	defer know.Close()

	journal := openJournal(cfg)
	defer journal.Close()

	engine := drift.New(
		corpus.NewLoader(cfg.CorpusDir),
		index.NewStore(cfg.IndexDir),
		know,
		journal,
		cfg.StateDir,
	)

	if detect, _ := cmd.Flags().GetBool("detect"); detect {
		changes, err := engine.DetectChanges()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), changes)
	}

	var res *drift.Result
	if incremental, _ := cmd.Flags().GetBool("incremental"); incremental {
		res, err = engine.IncrementalSync(context.Background())
	} else {
		res, err = engine.FullSync(context.Background())
	}

	// The result is non-nil even on failure; print it, then let the error
	// reach stderr through cobra.
	if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
		return werr
	}
	return err
}
