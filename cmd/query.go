package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/orrery/internal/config"
	"github.com/papapumpkin/orrery/internal/corpus"
	"github.com/papapumpkin/orrery/internal/query"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Query the requirements graph",
	Long: `Runs a query against the persisted index. The kind is detected from the
query text unless --kind pins one: keyword, relationship, pattern, impact,
coverage, or gap.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("kind", "auto", "query kind (auto, keyword, relationship, pattern, impact, coverage, gap)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	kindFlag, _ := cmd.Flags().GetString("kind")
	kind, err := query.ParseKind(kindFlag)
	if err != nil {
		return err
	}

	g, err := loadGraph(cfg)
	if err != nil {
		return err
	}

	know, err := openKnowledge(cfg)
	if err != nil {
		return err
	}
	defer know.Close()

	features, err := corpus.LoadFeatures(cfg.FeaturesDir)
	if err != nil {
		return err
	}

	journal := openJournal(cfg)
	defer journal.Close()

	engine := query.New(g, know, features)
	res, err := engine.Query(context.Background(), args[0], kind)
	if err != nil {
		return err
	}

	emit(journal, telemetry.Event{Kind: telemetry.KindQueryExecuted, Data: map[string]any{
		"query_type": res.Metadata.QueryType,
		"results":    res.Metadata.ResultsCount,
	}})
	return writeJSON(cmd.OutOrStdout(), res)
}
