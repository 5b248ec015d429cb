// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/logging"
	"dbscript/cli/internal/scripting"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	scriptType    string
	scriptOut     string
	scriptLimit   int
	scriptTimeout time.Duration
)

// scriptCmd generates a script for one database object.
var scriptCmd = &cobra.Command{
	Use:   "script <connection> <operation> <object>",
	Short: "Generate a script for a database object",
	Long: `The script command generates a SQL script for an object of a saved connection.

Operations: select, create, insert, update, delete, execute, alter
Object types (--type): table, view, function, procedure

The object may be schema-qualified (billing.invoices). The script is printed to
stdout, or written to --out.`,
	Example: `  dbscript script prod select public.users --limit 50
  dbscript script prod create active_users --type view
  dbscript script prod execute billing.close_month --type procedure --out close_month.sql`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		connectionURI := args[0]
		op, err := scripting.ParseOperation(args[1])
		if err != nil {
			return err
		}
		kind, err := scripting.ParseMetadataType(scriptType)
		if err != nil {
			return err
		}
		metadata := objectMetadata(kind, args[2])

		a, err := newApp()
		if err != nil {
			return err
		}
		if _, ok := a.conns.Get(connectionURI); !ok {
			return fmt.Errorf("no connection named %q (run: dbscript connections)", connectionURI)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if scriptTimeout > 0 {
			var cancel func()
			ctx, cancel = context.WithTimeout(ctx, scriptTimeout)
			defer cancel()
		}

		a.registerProviders(ctx, nil)
		defer a.close()

		params := scripting.ParamDetails{
			FilePath:                 scriptOut,
			TargetDatabaseEngineType: a.conns.ProviderID(connectionURI),
			SelectLimit:              a.cfg.SelectLimit,
		}
		if cmd.Flags().Changed("limit") {
			params.SelectLimit = scriptLimit
		}

		a.logger.Debug("Scripting", a.logger.Args(
			"connection", connectionURI,
			"operation", op.String(),
			"object", metadata.QualifiedName(),
			"type", kind.String(),
		))

		stopSpinner := func() {}
		if term.IsTerminal(int(os.Stderr.Fd())) {
			stopSpinner = startInlineSpinner(os.Stderr, "scripting "+metadata.QualifiedName(), 100*time.Millisecond)
		}
		res, err := a.svc.Script(ctx, connectionURI, metadata, op, params)
		stopSpinner()

		if err != nil {
			reportScriptFailure(a.svc, res, err)
			return err
		}
		if res == nil {
			providerID := a.conns.ProviderID(connectionURI)
			if providerID == "" {
				providerID = "none"
			}
			return fmt.Errorf("no scripting provider for connection %q (provider id: %s)", connectionURI, providerID)
		}

		if scriptOut != "" {
			pterm.Success.Printfln("Script written to %s", scriptOut)
			return nil
		}
		fmt.Print(res.Script)
		return nil
	},
}

// objectMetadata splits "schema.name" into the metadata of an object of kind.
func objectMetadata(kind scripting.MetadataType, object string) scripting.ObjectMetadata {
	md := scripting.ObjectMetadata{
		MetadataType:     kind,
		MetadataTypeName: kind.String(),
		Name:             object,
	}
	if schema, name, ok := strings.Cut(object, "."); ok && schema != "" && name != "" {
		md.Schema, md.Name = schema, name
	}
	return md
}

func reportScriptFailure(svc *scripting.Service, res *scripting.Result, err error) {
	if apperr.Is(err, apperr.TransportFailed) {
		pterm.Println(logging.FormatTransportError(err))
	} else {
		printFailure("Scripting failed", err)
	}

	if res == nil || res.OperationID == "" {
		return
	}
	if rec, ok := svc.OperationFailedResult(res.OperationID); ok {
		details := rec.ErrorDetails
		if details == "" {
			details = "-"
		}
		pterm.Printfln("Operation %s  canceled=%t  kind=%s", rec.OperationID, rec.Canceled, details)
	}
}

func init() {
	rootCmd.AddCommand(scriptCmd)
	scriptCmd.Flags().StringVarP(&scriptType, "type", "t", "table", "Object type: table, view, function or procedure")
	scriptCmd.Flags().StringVarP(&scriptOut, "out", "o", "", "Write the script to this file")
	scriptCmd.Flags().IntVar(&scriptLimit, "limit", 0, "Row limit for select scripts (0 disables; default from config)")
	scriptCmd.Flags().DurationVar(&scriptTimeout, "timeout", 0, "Give up after this long")
}
