package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studyblocks-server",
	Short: "Study session reminder service",
	Long: `studyblocks-server emails users shortly before their scheduled study
sessions start. Run "serve" for the HTTP trigger endpoint, or "dispatch"
from a cron job to perform a single invocation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("✗ %v", err)
		os.Exit(1)
	}
}
