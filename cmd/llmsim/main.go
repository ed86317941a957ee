// llmsim runs the agent supervisor's language model simulator from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/agent-supervisor/internal/llm"
	"github.com/ashureev/agent-supervisor/internal/random"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	seed        uint64
	catalogPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "llmsim",
		Short: "Run the simulated language model offline",
		Long: `Run the simulated language model offline.

Subcommands:
  classify   - Detect intent and sentiment of a customer message
  generate   - Produce the agent reply to a customer message
  knowledge  - Look up support documentation for a query`,
		SilenceUsage: true,
	}
	root.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "random seed (0 = seeded from the clock)")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "", "YAML response catalog (default: built-in)")

	root.AddCommand(newClassifyCmd(), newGenerateCmd(opts), newKnowledgeCmd(opts))
	return root
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Detect intent and sentiment of a customer message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), llm.Classify(strings.Join(args, " ")))
		},
	}
}

func newGenerateCmd(opts *options) *cobra.Command {
	var temperature float64

	cmd := &cobra.Command{
		Use:   "generate <customer message>",
		Short: "Produce the agent reply to a customer message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := opts.simulator()
			if err != nil {
				return err
			}

			req := llm.GenerateRequest{
				ConversationID: "cli",
				Messages:       []llm.ChatMessage{{Role: "customer", Content: strings.Join(args, " ")}},
			}
			if cmd.Flags().Changed("temperature") {
				req.Parameters = llm.Temperature(temperature)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			res, err := sim.Generate(ctx, req)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature; below 0.3 gives concise replies")
	return cmd
}

func newKnowledgeCmd(opts *options) *cobra.Command {
	var (
		bases []string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "knowledge <query>",
		Short: "Look up support documentation for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := opts.simulator()
			if err != nil {
				return err
			}
			results := sim.Knowledge(strings.Join(args, " "), bases, limit)
			return writeJSON(cmd.OutOrStdout(), map[string]any{"results": results})
		},
	}
	cmd.Flags().StringSliceVar(&bases, "bases", nil, "knowledge bases to search (default: all)")
	cmd.Flags().IntVar(&limit, "limit", llm.DefaultKnowledgeLimit, "maximum number of results")
	return cmd
}

func (o *options) simulator() (*llm.Simulator, error) {
	catalog, err := llm.LoadCatalog(o.catalogPath)
	if err != nil {
		return nil, err
	}
	return llm.NewSimulator(llm.SimulatorConfig{
		Catalog: catalog,
		Random:  random.New(o.seed),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
