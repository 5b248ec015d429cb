// Package main is the entry point for the dbscript CLI application.
// It generates SQL scripts for objects of saved database connections.
package main

import (
	"dbscript/cli/cmd"
)

func main() {
	cmd.Execute()
}
