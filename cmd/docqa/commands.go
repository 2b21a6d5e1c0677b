package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"docqa-workers/internal/common/config"
	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/genai"
	"docqa-workers/internal/models"
	"docqa-workers/internal/reasoning/orchestrator"
	"docqa-workers/internal/retrieval"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

type askOptions struct {
	corpus      string
	historyPath string
	documentIDs []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Ask questions against a local document corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (defaults to a local memory-index setup)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "log level written to stderr")

	root.AddCommand(newAskCmd(opts), newAnalyzeCmd(opts))
	return root
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question and print the chat response as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := root.orchestrator(opts.corpus)
			if err != nil {
				return err
			}

			history, err := readHistory(opts.historyPath)
			if err != nil {
				return err
			}

			resp, err := orch.GenerateChatResponse(cmd.Context(), orchestrator.ChatRequest{
				Question:            args[0],
				DocumentIDs:         opts.documentIDs,
				ConversationHistory: history,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "directory of .txt/.md documents to index")
	cmd.Flags().StringVar(&opts.historyPath, "history", "", "JSON file holding prior conversation turns")
	cmd.Flags().StringSliceVar(&opts.documentIDs, "doc", nil, "restrict retrieval to these document ids")
	_ = cmd.MarkFlagRequired("corpus")
	return cmd
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <question>",
		Short: "Print the query analysis for a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := root.orchestrator("")
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), orch.Analyze(args[0]))
		},
	}
}

func (o *rootOptions) orchestrator(corpus string) (*orchestrator.Orchestrator, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(o.configPath); err != nil {
			return nil, err
		}
	}
	log := logger.NewZapAdapter(logger.New(o.logLevel, "console"))

	index := retrieval.NewMemory()
	if corpus != "" {
		docs, err := retrieval.LoadCorpus(corpus)
		if err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("no .txt or .md documents in %s", corpus)
		}
		for _, doc := range docs {
			index.AddDocument(doc)
		}
	}

	provider, err := genai.NewFromConfig(cfg.APIs, log)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.ConfigFrom(cfg.Reasoning), index, provider, nil, log), nil
}

func readHistory(path string) ([]models.ConversationTurn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var turns []models.ConversationTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	return turns, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
