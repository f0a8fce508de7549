package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for an orrery invocation.
// Values are populated from orrery.yaml, ORRERY_* env vars, and CLI flags.
type Config struct {
	CorpusDir     string        `mapstructure:"corpus_dir"`
	IndexDir      string        `mapstructure:"index_dir"`
	FeaturesDir   string        `mapstructure:"features_dir"`
	KnowledgeDB   string        `mapstructure:"knowledge_db"`
	StateDir      string        `mapstructure:"state_dir"`
	JournalPath   string        `mapstructure:"journal_path"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() Config {
	viper.SetDefault("corpus_dir", "corpus")
	viper.SetDefault("index_dir", ".orrery/index")
	viper.SetDefault("features_dir", "features")
	viper.SetDefault("knowledge_db", ".orrery/knowledge.db")
	viper.SetDefault("state_dir", ".orrery")
	viper.SetDefault("journal_path", ".orrery/journal.jsonl")
	viper.SetDefault("watch_debounce", 500*time.Millisecond)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
