package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kennan/folio/internal/apiclient"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/entity"
)

// readProjects loads a projects.json file or, by extension, a YAML seed.
// Seed entries may omit the id and category; they are filled in the way the
// server does on creation.
func readProjects(path string) (projects []*entity.Project, checked []*entity.Project, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		projects, err = content.DecodeSeed(data)
		if err != nil {
			return nil, nil, err
		}
		return projects, withIDs(projects), nil
	default:
		projects, err = content.Decode(data)
		return projects, projects, err
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a projects.json file or YAML seed without a server",
		Long: `Checks ids, names and categories, and that every tour scene reference
points at a scene of the same project.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, checked, err := readProjects(args[0])
			if err != nil {
				return err
			}
			problems := content.Check(checked)
			for _, p := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if len(problems) != 0 {
				return fmt.Errorf("%s: %d problems", args[0], len(problems))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d projects OK\n", args[0], len(projects))
			return nil
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <seed.yaml>",
		Short: "Create or update projects from a seed file",
		Long: `Projects whose id already exists on the server are updated in place;
the others are created and get an id derived from their name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, checked, err := readProjects(args[0])
			if err != nil {
				return err
			}
			if problems := content.Check(checked); len(problems) != 0 {
				return fmt.Errorf("%s is invalid:\n  %s", args[0], strings.Join(problems, "\n  "))
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d projects would be imported\n", len(projects))
				return nil
			}
			c, err := opts.authedClient()
			if err != nil {
				return err
			}
			for _, p := range projects {
				action, id, err := importProject(cmd, c, p)
				if err != nil {
					return fmt.Errorf("%s: %w", p.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", action, id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Only validate the seed")
	return cmd
}

func importProject(cmd *cobra.Command, c *apiclient.Client, p *entity.Project) (string, string, error) {
	ctx := cmd.Context()
	if p.ID != "" {
		_, err := c.Get(ctx, p.ID)
		if err == nil {
			patch := entity.PatchFrom(p)
			updated, err := c.Update(ctx, p.ID, &patch)
			if err != nil {
				return "", "", err
			}
			return "updated", updated.ID, nil
		}
		if !apiclient.IsNotFound(err) {
			return "", "", err
		}
	}
	created, err := c.Create(ctx, p)
	if err != nil {
		return "", "", err
	}
	return "created", created.ID, nil
}

// withIDs returns copies of projects with a missing id derived from the name
// and a missing category defaulted.
func withIDs(projects []*entity.Project) []*entity.Project {
	out := make([]*entity.Project, len(projects))
	for i, p := range projects {
		out[i] = p.Clone()
		if out[i].ID == "" {
			out[i].ID = entity.Slugify(p.Name)
		}
		if out[i].Category == "" {
			out[i].Category = entity.Residential
		}
	}
	return out
}

func newExportCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every project as a YAML seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			projects, err := c.List(cmd.Context(), "")
			if err != nil {
				return err
			}
			data, err := content.EncodeSeed(projects)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d projects to %s\n", len(projects), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, stdout when empty")
	return cmd
}
