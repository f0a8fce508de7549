package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/orrery/internal/corpus"
)

const testFramework = `functional_requirements:
  FR-001:
    title: User authentication
    description: Users can log in with OAuth
    priority: high
non_functional_requirements:
  NFR-001:
    title: Latency budget
    description: P99 stays under 200ms
units_of_work:
  UoW-001:
    name: Build login flow
    goal: Implement the OAuth login flow
    implements: [FR-001]
    estimated_effort_hours: 8
`

// setupConfig points every config key at a fresh temp tree and writes a
// small corpus there. Viper state is global, so tests going through it do
// not run in parallel.
func setupConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeCorpus(t, filepath.Join(root, "corpus"), testFramework)

	viper.Reset()
	viper.Set("corpus_dir", filepath.Join(root, "corpus"))
	viper.Set("index_dir", filepath.Join(root, "index"))
	viper.Set("features_dir", filepath.Join(root, "features"))
	viper.Set("knowledge_db", filepath.Join(root, "knowledge.db"))
	viper.Set("state_dir", filepath.Join(root, "state"))
	viper.Set("journal_path", filepath.Join(root, "journal.jsonl"))
	t.Cleanup(viper.Reset)
	return root
}

func writeCorpus(t *testing.T, dir, framework string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating corpus dir: %v", err)
	}
	path := filepath.Join(dir, corpus.FrameworkFile)
	if err := os.WriteFile(path, []byte(framework), 0644); err != nil {
		t.Fatalf("writing framework file: %v", err)
	}
}

// runCapture invokes a command's run function with stdout and stderr
// redirected, returning what it printed.
func runCapture(cmd *cobra.Command, run func(*cobra.Command, []string) error, args []string) (string, error) {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := run(cmd, args)
	return out.String(), err
}

// setFlag sets a command flag for the duration of the test.
func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	f := cmd.Flags().Lookup(name)
	if f == nil {
		t.Fatalf("no flag %q on %s", name, cmd.Name())
	}
	prev := f.Value.String()
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("setting flag %q: %v", name, err)
	}
	t.Cleanup(func() { _ = cmd.Flags().Set(name, prev) })
}
