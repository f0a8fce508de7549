package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/orrery/internal/config"
	"github.com/papapumpkin/orrery/internal/impact"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

var impactCmd = &cobra.Command{
	Use:   "impact [entity-id]",
	Short: "Analyze change impact across the graph",
	Long: `Reports what a change to one entity does to the rest of the graph.

With an entity id, produces a full impact report for the given change type.
--matrix, --critical, and --simulate-removal select the other analysis modes
and take precedence over the positional form.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImpact,
}

func init() {
	impactCmd.Flags().String("change", "modification", "change type (modification, major_modification, removal)")
	impactCmd.Flags().StringSlice("matrix", nil, "entity ids for a pairwise impact matrix")
	impactCmd.Flags().Bool("critical", false, "rank entities by dependency criticality")
	impactCmd.Flags().String("simulate-removal", "", "simulate removing the given entity")
	rootCmd.AddCommand(impactCmd)
}

func runImpact(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	g, err := loadGraph(cfg)
	if err != nil {
		return err
	}
	analyzer := impact.New(g)

	journal := openJournal(cfg)
	defer journal.Close()

	if ids, _ := cmd.Flags().GetStringSlice("matrix"); len(ids) > 0 {
		emit(journal, telemetry.Event{Kind: telemetry.KindImpactAnalyzed, Data: map[string]any{
			"mode": "matrix", "entities": len(ids),
		}})
		return writeJSON(cmd.OutOrStdout(), analyzer.ImpactMatrix(ids))
	}

	if critical, _ := cmd.Flags().GetBool("critical"); critical {
		deps := analyzer.CriticalDependencies()
		emit(journal, telemetry.Event{Kind: telemetry.KindImpactAnalyzed, Data: map[string]any{
			"mode": "critical", "results": len(deps),
		}})
		return writeJSON(cmd.OutOrStdout(), deps)
	}

	if id, _ := cmd.Flags().GetString("simulate-removal"); id != "" {
		sim, err := analyzer.SimulateRemoval(id)
		if err != nil {
			return err
		}
		emit(journal, telemetry.Event{Kind: telemetry.KindImpactAnalyzed, EntityID: id, Data: map[string]any{
			"mode": "simulate_removal",
		}})
		return writeJSON(cmd.OutOrStdout(), sim)
	}

	if len(args) == 0 {
		return errors.New("impact: an entity id or one of --matrix, --critical, --simulate-removal is required")
	}

	changeFlag, _ := cmd.Flags().GetString("change")
	change, err := impact.ParseChangeType(changeFlag)
	if err != nil {
		return err
	}

	report, err := analyzer.AnalyzeChangeImpact(args[0], change)
	if err != nil {
		return err
	}
	emit(journal, telemetry.Event{Kind: telemetry.KindImpactAnalyzed, EntityID: args[0], Data: map[string]any{
		"mode": "report", "change_type": change,
	}})
	return writeJSON(cmd.OutOrStdout(), report)
}
