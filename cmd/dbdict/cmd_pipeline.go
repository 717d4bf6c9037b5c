package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/modules/dictionary"
)

// newExtractCmd creates the extract subcommand
func newExtractCmd() *cobra.Command {
	var skipQuality bool
	cmd := &cobra.Command{
		Use:   "extract <connection>",
		Short: "Extract schema and quality metrics from a registered connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.close()

			out, err := extract(cmd, env, args[0], skipQuality)
			if err != nil {
				return err
			}
			return emit(map[string]any{
				"db_name": out.Schema.Name,
				"tables":  len(out.Schema.Tables),
				"quality": len(out.Quality),
			}, func() {
				fmt.Printf("extracted %s: %d tables, quality for %d\n", out.Schema.Name, len(out.Schema.Tables), len(out.Quality))
			})
		},
	}
	cmd.Flags().BoolVar(&skipQuality, "skip-quality", false, "skip row counts and column statistics")
	return cmd
}

func extract(cmd *cobra.Command, env *cliEnv, name string, skipQuality bool) (dictionary.ExtractOutput, error) {
	reg, err := env.registry()
	if err != nil {
		return dictionary.ExtractOutput{}, err
	}
	conn, err := reg.Get(name)
	if err != nil {
		return dictionary.ExtractOutput{}, fmt.Errorf("%w (known: %s)", err, strings.Join(reg.Names(), ", "))
	}
	src, err := introspect.Open(cmd.Context(), env.log, conn)
	if err != nil {
		return dictionary.ExtractOutput{}, err
	}
	defer src.Close()

	uc, err := env.dictionary(needs{})
	if err != nil {
		return dictionary.ExtractOutput{}, err
	}
	return uc.Extract(cmd.Context(), src, dictionary.ExtractInput{DBName: conn.Name, SkipQuality: skipQuality})
}

// newSummarizeCmd creates the summarize subcommand
func newSummarizeCmd() *cobra.Command {
	var tables []string
	cmd := &cobra.Command{
		Use:   "summarize <db>",
		Short: "Generate business summaries for a database's tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.close()

			uc, err := env.dictionary(needs{ai: true})
			if err != nil {
				return err
			}
			out, err := uc.Summarize(cmd.Context(), dictionary.SummarizeInput{DBName: args[0], Tables: tables})
			if err != nil {
				return err
			}
			return emit(map[string]any{
				"db_name": args[0],
				"tables":  len(out.Summaries),
				"failed":  out.Failed,
			}, func() {
				fmt.Printf("summarized %s: %d tables\n", args[0], len(out.Summaries))
				if len(out.Failed) > 0 {
					fmt.Printf("  fallback summaries: %s\n", strings.Join(out.Failed, ", "))
				}
			})
		},
	}
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "only these tables (default all)")
	return cmd
}

// newGraphCmd creates the graph subcommand
func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <db>",
		Short: "Load a database's schema into the knowledge graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.close()

			uc, err := env.dictionary(needs{graph: true})
			if err != nil {
				return err
			}
			out, err := uc.BuildGraph(cmd.Context(), dictionary.BuildGraphInput{DBName: args[0]})
			if err != nil {
				return err
			}
			return emit(out, func() {
				fmt.Printf("graph %s: %d tables, %d columns, %d relationships (quality=%t)\n",
					args[0], out.Tables, out.Columns, out.Relationships, out.WithQuality)
			})
		},
	}
}

// newIngestCmd creates the ingest subcommand
func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <db>",
		Short: "Rebuild a database's vector collection from its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.close()

			uc, err := env.dictionary(needs{index: true})
			if err != nil {
				return err
			}
			out, err := uc.Ingest(cmd.Context(), dictionary.IngestInput{DBName: args[0]})
			if err != nil {
				return err
			}
			return emit(map[string]any{"db_name": args[0], "chunks": out.Chunks, "tables": out.Tables}, func() {
				fmt.Printf("ingested %s: %d chunks\n", args[0], out.Chunks)
			})
		},
	}
}
