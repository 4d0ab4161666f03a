// Package main provides the docqa CLI for ingesting documents and asking grounded questions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/docqa/internal/app"
	"github.com/bull/docqa/internal/config"
	ghclient "github.com/bull/docqa/internal/github"
	"github.com/bull/docqa/internal/indexer"
	"github.com/bull/docqa/internal/storage"
)

var (
	configPath string
	dataDir    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "docqa",
	Short:         "Grounded question answering over your documents",
	Long:          "CLI tool for ingesting PDF, DOCX, CSV, Markdown and text documents and answering questions strictly from them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./docqa.yaml or ~/.config/docqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config and DOCQA_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(ingestCmd(), listCmd(), showCmd(), searchCmd(), contextCmd(), askCmd(), resetCmd())
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openApp loads configuration and wires the components.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, _, err := config.LoadDefault(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger := config.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	return app.New(cmd.Context(), cfg, logger)
}

func ingestCmd() *cobra.Command {
	var github string
	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Process documents into the store",
		Long: `Extracts, normalizes and chunks each document and stores it by content hash.
Identical bytes are processed once. Paths may be files, globs or directories.

Environment variables:
  DOCQA_DATA_DIR  Data directory (default: data)
  DOCQA_EMBEDDER  tfidf or openai (default: tfidf)
  QDRANT_HOST     Qdrant hostname when vector_index.type is qdrant (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY  OpenAI API key for the openai embedder and generator
  GITHUB_TOKEN    GitHub token for higher rate limits (optional)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && github == "" {
				return errors.New("nothing to ingest: pass paths or --github")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var sources []indexer.Source
			if len(args) > 0 {
				sources = append(sources, indexer.NewFileSource(args...).WithMaxSize(a.Store.MaxFileSize()))
			}
			if github != "" {
				owner, repo, base, err := ghclient.ParseLocation(github)
				if err != nil {
					return err
				}
				client, err := ghclient.NewClient("")
				if err != nil {
					return fmt.Errorf("Failed to create GitHub client: %w", err)
				}
				sources = append(sources, indexer.NewGitHubSource(ghclient.NewFetcher(client, owner, repo, base)))
			}

			start := time.Now()
			for _, src := range sources {
				result, err := a.Pipeline.IndexAll(cmd.Context(), src)
				if err != nil {
					return fmt.Errorf("Indexing failed: %w", err)
				}
				printIndexResult(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total time: %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&github, "github", "", "also ingest a GitHub directory, as owner/repo[/path]")
	return cmd
}

func printIndexResult(cmd *cobra.Command, result *indexer.IndexResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Ingest complete!")
	fmt.Fprintf(out, "  Documents: %d/%d (%d already processed)\n", result.SuccessfulDocs, result.TotalDocs, result.SkippedDocs)
	fmt.Fprintf(out, "  Chunks: %d\n", result.TotalChunks)
	fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List processed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No documents processed yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-40s %4d chunks  %s\n",
					e.ID, e.Filename, e.ChunkCount, e.ProcessedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a processed document record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Store.Get(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrDocumentNotFound) {
				return fmt.Errorf("no document %s", args[0])
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd, doc)
		},
	}
}

func searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword search across all documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Store.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching chunks found.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s #%d (similarity: %.2f)\n   %s\n", i+1, r.DocumentName, r.ChunkID, r.Similarity, snippet(r.Content, 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum results")
	return cmd
}

func contextCmd() *cobra.Command {
	var docIDs []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Assemble grounded context for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := selectDocuments(cmd, a, docIDs)
			if err != nil {
				return err
			}
			c := a.Assembler.Assemble(cmd.Context(), strings.Join(args, " "), ids)
			if asJSON {
				return writeJSON(cmd, c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s via %s]\n%s\n", c.State, c.Strategy, c.Text)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&docIDs, "doc", "d", nil, "document ids to draw from (default: all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full grounding as JSON")
	return cmd
}

func askCmd() *cobra.Command {
	var docIDs []string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := selectDocuments(cmd, a, docIDs)
			if err != nil {
				return err
			}
			ans, err := a.Answerer.Ask(cmd.Context(), strings.Join(args, " "), ids)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Content)
			if ans.ContextUsed {
				fmt.Fprintln(out)
				for i, s := range ans.Context.Sources {
					fmt.Fprintf(out, "  Source %d: %s (similarity: %.2f)\n", i+1, s.DocumentName, s.Similarity)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&docIDs, "doc", "d", nil, "document ids to answer from (default: all)")
	return cmd
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored document, vector and cached embedding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes all documents; rerun with --yes")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Store reset.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

// selectDocuments returns ids, or every stored id when none were given.
func selectDocuments(cmd *cobra.Command, a *app.App, ids []string) ([]string, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	entries, err := a.Store.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	all := make([]string, len(entries))
	for i, e := range entries {
		all[i] = e.ID
	}
	return all, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func snippet(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
