// Package main implements the go-bundle-report CLI (gbr).
// It attributes the bytes of built JavaScript and CSS assets to the sources
// they were compiled from and writes a JSON or HTML report.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/l3aro/go-bundle-report/cmd/gbr/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.SetVersionTemplate(`gbr version {{.Version}}
`)
	commands.RootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
