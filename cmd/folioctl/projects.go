package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/kennan/folio/internal/storage/entity"
)

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

func newListCmd(opts *options) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			projects, err := c.List(cmd.Context(), category)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), projectTable(projects))
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only list projects of this category")
	return cmd
}

func projectTable(projects []*entity.Project) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "CATEGORY", "YEAR", "SCENES")
	for _, p := range projects {
		t.Row(p.ID, p.Name, string(p.Category), p.Year, strconv.Itoa(p.Tour().Len()))
	}
	return t.String()
}

func newShowCmd(opts *options) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			p, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatProject(p, width))
			return nil
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", 80, "Wrap the story at this width")
	return cmd
}

func formatProject(p *entity.Project, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", p.Name)
	facts := [][2]string{
		{"ID", p.ID},
		{"Location", p.Location},
		{"Year", p.Year},
		{"Category", string(p.Category)},
		{"Area", p.Area},
		{"Role", p.Role},
		{"Software", p.Software},
	}
	for _, f := range facts {
		if f[1] != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-9s", f[0])), f[1])
		}
	}
	fmt.Fprintf(&b, "%s %d images\n", labelStyle.Render(fmt.Sprintf("%-9s", "Gallery")), len(p.Gallery))
	if g := p.Tour(); !g.Empty() {
		names := make([]string, 0, g.Len())
		for _, s := range g.Scenes() {
			names = append(names, s.Name)
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-9s", "Tour")), strings.Join(names, " → "))
	}
	for _, para := range p.Story {
		b.WriteString("\n")
		b.WriteString(wordwrap.String(para, width))
		b.WriteString("\n")
	}
	return b.String()
}

func newOpenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Open the public page of a project in a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			// Fail on unknown ids instead of opening a 404 page.
			if _, err := c.Get(cmd.Context(), args[0]); err != nil {
				return err
			}
			return browser.OpenURL(c.ProjectURL(args[0]))
		},
	}
}

func newSchemaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			schema, err := c.Schema(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schema)
		},
	}
}
