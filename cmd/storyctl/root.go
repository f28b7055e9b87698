package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/snappy-loop/storyteller/internal/app"
	"github.com/snappy-loop/storyteller/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "storyctl",
	Short:         "Generate and browse narrated stories from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		app.ConfigureLogging(config.Load().LogLevel)
	},
}

// withApp runs fn against a fully wired application and releases it afterwards.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
