// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"dbscript/cli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// connectionsCmd lists saved connections with their passwords masked.
var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Aliases: []string{"ls"},
	Short:   "List saved database connections",
	Long: `The connections command lists the saved connections, the provider that scripts
each of them and the connection string with the password masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		profiles := a.conns.List()
		if len(profiles) == 0 {
			pterm.Println("⚠️  No connections configured")
			pterm.Println("   Please run: dbscript connect <name>")
			return nil
		}

		data := pterm.TableData{{"Name", "Provider", "DSN"}}
		for _, p := range profiles {
			providerID := p.ProviderID()
			if providerID == "" {
				providerID = "-"
			}
			data = append(data, []string{p.Name, providerID, logging.Mask(p.DSN)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var connectionsRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a saved connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.conns.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("✅ Connection %q removed\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
	connectionsCmd.AddCommand(connectionsRmCmd)
}
