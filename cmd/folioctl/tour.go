package main

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kennan/folio/internal/tui"
)

func newTourCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tour <id>",
		Short: "Walk through the virtual tour of a project in the terminal",
		Long: `Opens an interactive view of the project's tour. Each scene's image is
downloaded and checked; hotspots lead to the next scenes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := c.Get(ctx, args[0])
			if err != nil {
				return err
			}
			// Log lines would corrupt the alternate screen.
			slog.SetDefault(slog.New(slog.DiscardHandler))
			model := tui.NewTourModel(ctx, p, c, c.ProjectURL(p.ID))
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}
