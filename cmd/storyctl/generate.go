package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snappy-loop/storyteller/internal/app"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/processor"
)

type generateArgs struct {
	prompt   string
	title    string
	genre    string
	tags     []string
	tolerant bool
}

var genArgs generateArgs

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one story and print its record",
	RunE:  runGenerate,
}

var batchCmd = &cobra.Command{
	Use:   "batch <requests.json>",
	Short: "Generate every story request in a JSON array file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

func init() {
	generateCmd.Flags().StringVarP(&genArgs.prompt, "prompt", "p", "", "what the story is about")
	generateCmd.Flags().StringVarP(&genArgs.title, "title", "t", "", "story title")
	generateCmd.Flags().StringVarP(&genArgs.genre, "genre", "g", "", "fantasy or sci-fi")
	generateCmd.Flags().StringSliceVar(&genArgs.tags, "tag", nil, "story tag (repeatable)")
	generateCmd.Flags().BoolVar(&genArgs.tolerant, "tolerate-voice-failures", false, "keep the story when some narrations fail")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(batchCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	req := models.StoryRequest{
		Prompt: genArgs.prompt,
		Title:  genArgs.title,
		Genre:  genArgs.genre,
		Tags:   genArgs.tags,
	}
	if _, err := req.Validate(); err != nil {
		return err
	}

	run := processor.RunOptions{
		TolerateVoiceFailures: genArgs.tolerant,
		Observer: func(ev processor.StageEvent) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ev.Stage, ev.Detail)
		},
	}
	return withApp(cmd.Context(), func(a *app.App) error {
		record, err := a.Stories.Generate(cmd.Context(), req, run)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), record)
	})
}

func runBatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("batch file must hold a JSON array: %w", err)
	}

	return withApp(cmd.Context(), func(a *app.App) error {
		return printJSON(cmd.OutOrStdout(), a.Batch.Process(cmd.Context(), items))
	})
}
