// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for dbscript. It implements
// subcommands for managing named database connections and generating scripts
// for their objects using the Cobra CLI framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	logLevel    string
	logFormat   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dbscript",
	Short: "Generate SQL scripts for database objects",
	Long: `dbscript generates SELECT, CREATE, INSERT, UPDATE, DELETE, EXECUTE and ALTER
scripts for tables, views, functions and procedures of saved database connections.

Connections are stored in the OS keychain. PostgreSQL and SQLite are scripted
locally; other engines can be served by a remote scripting host.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("dbscript %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
}
