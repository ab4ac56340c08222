package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpusd/internal/config"
	"github.com/corpusworks/corpusd/internal/service"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the index",
		Long:  "Run a hybrid semantic and lexical search against the index",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().StringP("library", "l", "", "Restrict search to one library")
	cmd.Flags().IntP("top-k", "k", 10, "Number of results to return")
	cmd.Flags().StringToString("filter", nil, "Field filters, e.g. --filter file_type=md")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	library, _ := cmd.Flags().GetString("library")
	topK, _ := cmd.Flags().GetInt("top-k")
	filters, _ := cmd.Flags().GetStringToString("filter")

	results, err := a.searchSvc.Search(ctx, service.SearchInput{
		Query:   strings.Join(args, " "),
		Library: library,
		TopK:    topK,
		Filters: filters,
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%2d. [%.4f] %s (doc %s, chunk %d)\n", i+1, r.Score, r.Source, r.DocID, r.ChunkIndex)
		if r.Title != "" {
			fmt.Printf("    %s\n", r.Title)
		}
		fmt.Printf("    %s\n", r.Snippet)
	}
	return nil
}
