package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/orrery/internal/config"
	"github.com/papapumpkin/orrery/internal/knowledge"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

var lessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "Manage lessons learned",
}

var lessonRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a lesson learned in the knowledge store",
	Long: `Stores a lesson in the knowledge store. The next sync promotes it into
the corpus knowledge directory.`,
	Args: cobra.NoArgs,
	RunE: runLessonRecord,
}

func init() {
	lessonRecordCmd.Flags().String("category", "", "lesson category")
	lessonRecordCmd.Flags().String("situation", "", "what was going on")
	lessonRecordCmd.Flags().String("problem", "", "what went wrong")
	lessonRecordCmd.Flags().String("solution", "", "what fixed it")
	lessonRecordCmd.Flags().String("outcome", "", "how it ended")
	lessonRecordCmd.Flags().StringSlice("tags", nil, "tags for retrieval")
	lessonRecordCmd.Flags().String("impact", "medium", "impact level (low, medium, high)")
	for _, f := range []string{"category", "situation", "problem", "solution", "outcome"} {
		_ = lessonRecordCmd.MarkFlagRequired(f)
	}

	lessonCmd.AddCommand(lessonRecordCmd)
	rootCmd.AddCommand(lessonCmd)
}

func runLessonRecord(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	know, err := openKnowledge(cfg)
	if err != nil {
		return err
	}
	defer know.Close()

	journal := openJournal(cfg)
	defer journal.Close()

	category, _ := cmd.Flags().GetString("category")
	situation, _ := cmd.Flags().GetString("situation")
	problem, _ := cmd.Flags().GetString("problem")
	solution, _ := cmd.Flags().GetString("solution")
	outcome, _ := cmd.Flags().GetString("outcome")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	impactLevel, _ := cmd.Flags().GetString("impact")

	l := knowledge.Lesson{
		ID:        uuid.NewString(),
		Category:  category,
		Situation: situation,
		Problem:   problem,
		Solution:  solution,
		Outcome:   outcome,
		Tags:      tags,
		Impact:    impactLevel,
	}
	if err := know.RecordLesson(context.Background(), l); err != nil {
		return err
	}

	emit(journal, telemetry.Event{Kind: telemetry.KindLessonRecorded, EntityID: l.ID, Data: map[string]any{
		"category": l.Category,
	}})
	return writeJSON(cmd.OutOrStdout(), l)
}
