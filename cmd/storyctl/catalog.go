package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snappy-loop/storyteller/internal/app"
	"github.com/snappy-loop/storyteller/internal/config"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/voice"
)

var catalogGenre string

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Print one random stored story with resolved asset URLs",
	RunE:  runRandom,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored stories",
	RunE:  runList,
}

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Print the configured narration voices",
	RunE:  runRoster,
}

func init() {
	randomCmd.Flags().StringVarP(&catalogGenre, "genre", "g", "", "restrict to one genre")
	listCmd.Flags().StringVarP(&catalogGenre, "genre", "g", "", "restrict to one genre")

	rootCmd.AddCommand(randomCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rosterCmd)
}

func parseGenreFlag() (models.Genre, error) {
	if catalogGenre == "" {
		return "", nil
	}
	return models.ParseGenre(catalogGenre)
}

func runRandom(cmd *cobra.Command, args []string) error {
	genre, err := parseGenreFlag()
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(a *app.App) error {
		record, err := a.Catalog.RandomStory(cmd.Context(), genre)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), record)
	})
}

func runList(cmd *cobra.Command, args []string) error {
	genre, err := parseGenreFlag()
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(a *app.App) error {
		stories, err := a.Catalog.ListStories(cmd.Context(), genre)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tGENRE\tTITLE\tVOICES")
		for _, s := range stories {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.StoryID, s.Genre, s.Title, len(s.Audio))
		}
		return w.Flush()
	})
}

func runRoster(cmd *cobra.Command, args []string) error {
	roster, err := voice.LoadRoster(config.Load().VoiceRosterFile)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLANGUAGE\tSPEAKER\tGENDER")
	for _, v := range roster {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Key(), v.LanguageCode, v.SpeakerID, v.Gender)
	}
	return w.Flush()
}
