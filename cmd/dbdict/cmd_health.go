package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/dbdict-backend/internal/domain/health"
	"github.com/yungbote/dbdict-backend/internal/jobs/monitor"
)

// newHealthCmd creates the health subcommand
func newHealthCmd() *cobra.Command {
	var deep bool
	cmd := &cobra.Command{
		Use:   "health [connection]",
		Short: "Run a health check against one or all registered connections",
		Long: `Run a health check and store its report.

A light check opens the connection and runs SELECT 1. A deep check also
re-extracts the schema and recomputes quality metrics.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.close()

			reg, err := env.registry()
			if err != nil {
				return err
			}
			reports, err := env.healthReports()
			if err != nil {
				return err
			}
			store := env.artifacts()
			opts := monitor.OptionsFromEnv()
			opts.Artifacts = &store
			m := monitor.New(env.log, reg, reports, opts)

			kind := health.KindLight
			if deep {
				kind = health.KindDeep
			}
			var results []*health.Report
			if len(args) == 1 {
				r, err := m.CheckByName(cmd.Context(), args[0], kind)
				if err != nil {
					if r == nil {
						return err
					}
					env.log.Warn("health report not stored", "connection", args[0], "error", err)
				}
				results = append(results, r)
			} else {
				results = m.RunAll(cmd.Context(), kind)
			}
			return emit(results, func() {
				for _, r := range results {
					if r == nil {
						continue
					}
					line := fmt.Sprintf("%-20s %-5s %-6s %8.1fms", r.Connection, r.Kind, r.Status, r.LatencyMS)
					if r.Error != "" {
						line += "  " + r.Error
					}
					fmt.Println(line)
				}
				fmt.Printf("checked at %s\n", time.Now().UTC().Format(time.RFC3339))
			})
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "run a deep check")
	return cmd
}
