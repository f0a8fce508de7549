package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/orrery/internal/config"
	"github.com/papapumpkin/orrery/internal/graph"
	"github.com/papapumpkin/orrery/internal/index"
	"github.com/papapumpkin/orrery/internal/knowledge"
	"github.com/papapumpkin/orrery/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "orrery",
	Short: "Requirements corpus graph engine",
	Long:  "Orrery indexes a requirements corpus into an entity-relationship graph and answers query, impact, and drift questions about it.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .orrery.yaml)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".orrery")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("ORRERY")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// writeJSON pretty-prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadGraph loads the persisted index. Commands that read the graph require
// an index to exist; they never build one implicitly.
func loadGraph(cfg config.Config) (*graph.Graph, error) {
	store := index.NewStore(cfg.IndexDir)
	if !store.Exists() {
		return nil, fmt.Errorf("no index at %s; run \"orrery index\" first", cfg.IndexDir)
	}
	g, _, err := store.Load()
	return g, err
}

// openKnowledge opens the knowledge store, creating its directory if needed.
func openKnowledge(cfg config.Config) (*knowledge.Store, error) {
	if dir := filepath.Dir(cfg.KnowledgeDB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("knowledge dir: %w", err)
		}
	}
	return knowledge.NewStore(context.Background(), cfg.KnowledgeDB)
}

// openJournal opens the telemetry emitter, creating the journal directory if
// needed. A failed open degrades to the nil no-op emitter so journal trouble
// never blocks a command.
func openJournal(cfg config.Config) *telemetry.Emitter {
	if dir := filepath.Dir(cfg.JournalPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "journal: %v\n", err)
			return nil
		}
	}
	em, err := telemetry.NewEmitter(cfg.JournalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "journal: %v\n", err)
		return nil
	}
	return em
}

// emit stamps and writes one journal event, best effort.
func emit(j *telemetry.Emitter, evt telemetry.Event) {
	evt.Timestamp = time.Now().UTC()
	_ = j.Emit(evt)
}
