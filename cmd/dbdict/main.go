package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version info (set by ldflags)
	version = "dev"

	// Flags
	connectionsPath string
	artifactsDir    string
	jsonOutput      bool
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "dbdict",
		Short: "Database schema dictionary and question answering",
		Long: `dbdict documents relational databases and answers questions about them.

Pipeline:
  dbdict extract <connection>   Read schema and quality metrics into artifacts
  dbdict summarize <db>         Generate table summaries
  dbdict graph <db>             Load the schema into the knowledge graph
  dbdict ingest <db>            Rebuild the vector collection

Querying:
  dbdict databases              List ingested databases
  dbdict ask <db> <question>    Answer one question
  dbdict health [connection]    Run health checks`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&connectionsPath, "connections", "", "connections file (default $DBDICT_CONNECTIONS or connections.yaml)")
	rootCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts", "", "artifacts directory (default $ARTIFACTS_DIR or artifacts)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(
		newExtractCmd(),
		newSummarizeCmd(),
		newGraphCmd(),
		newIngestCmd(),
		newDatabasesCmd(),
		newAskCmd(),
		newHealthCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}
