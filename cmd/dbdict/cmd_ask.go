package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/dbdict-backend/internal/app"
	"github.com/yungbote/dbdict-backend/internal/data/sessions"
	"github.com/yungbote/dbdict-backend/internal/modules/dictionary"
)

// newDatabasesCmd creates the databases subcommand
func newDatabasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List databases with an ingested collection",
		Args:  cobra.NoArgs,
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
			names, err := uc.ListDatabases(cmd.Context())
			if err != nil {
				return err
			}
			return emit(map[string]any{"databases": names}, func() {
				for _, n := range names {
					fmt.Println(n)
				}
			})
		},
	}
}

// newAskCmd creates the ask subcommand
func newAskCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask <db> <question>",
		Short: "Answer a question about a database's schema",
		Long: `Answer a question about a database's schema.

With --session the question joins that session's history, so follow-ups
like "what about its columns?" resolve against earlier turns.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv()
			if err != nil {
				return err
			}
			defer env.close()

			question := strings.Join(args[1:], " ")
			if sessionID == "" {
				uc, err := env.dictionary(needs{ai: true, index: true, graph: true})
				if err != nil {
					return err
				}
				out, err := uc.Answer(cmd.Context(), dictionary.AnswerInput{DBName: args[0], Question: question})
				if err != nil {
					return err
				}
				return emit(out, func() { printAnswer(string(out.Intent), out.Answer) })
			}

			uc, err := env.chatDictionary()
			if err != nil {
				return err
			}
			out, err := uc.Chat(cmd.Context(), dictionary.ChatInput{DBName: args[0], Question: question, SessionID: sessionID})
			if err != nil {
				return err
			}
			return emit(out, func() { printAnswer(string(out.Intent), out.Answer) })
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue")
	return cmd
}

// chatDictionary wires the session store on top of the answering stack.
func (e *cliEnv) chatDictionary() (dictionary.Usecases, error) {
	uc, err := e.dictionary(needs{ai: true, index: true, graph: true})
	if err != nil {
		return dictionary.Usecases{}, err
	}
	var store sessions.Store
	if e.cfg.SessionsBackend == app.SessionsBackendRedis {
		store, err = sessions.NewRedisStoreFromEnv(e.log)
	} else {
		store, err = sessions.NewFileStore(e.log, e.cfg.SessionsDir)
	}
	if err != nil {
		return dictionary.Usecases{}, fmt.Errorf("init session store: %w", err)
	}
	return uc.WithSessions(store), nil
}

func printAnswer(intent, answer string) {
	fmt.Printf("[%s]\n%s\n", intent, answer)
}
