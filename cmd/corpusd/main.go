package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpusd/internal/cli"
	"github.com/corpusworks/corpusd/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "corpusd",
		Short: "Corpus daemon and CLI",
		Long:  "Corpus daemon for running the ingestion and search API server, with bulk ingest and search commands",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.SearchCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
