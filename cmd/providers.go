// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered scripting providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		a.registerProviders(ctx, nil)
		defer a.close()

		used := map[string]int{}
		for _, p := range a.conns.List() {
			used[p.ProviderID()]++
		}

		data := pterm.TableData{{"Provider", "Connections"}}
		for _, id := range a.svc.Providers() {
			data = append(data, []string{id, strconv.Itoa(used[id])})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
