package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mimic-assistant/internal/app"
)

func newCatalogCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse projects, tech stack and future innovations",
	}

	var category string
	projects := &cobra.Command{
		Use:   "projects",
		Short: "List showcase projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				list, err := a.CatalogUC.Projects(category)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}
	projects.Flags().StringVar(&category, "category", "", "mechatronics, software or embedded")

	var withOverviews bool
	tech := &cobra.Command{
		Use:   "tech",
		Short: "List the tech stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				if withOverviews {
					return printJSON(cmd.OutOrStdout(), a.CatalogUC.Overviews(cmd.Context()))
				}
				return printJSON(cmd.OutOrStdout(), a.CatalogUC.Tech())
			})
		},
	}
	tech.Flags().BoolVar(&withOverviews, "overviews", false, "generate a beginner overview for every item")

	innovations := &cobra.Command{
		Use:   "innovations",
		Short: "List future innovations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				return printJSON(cmd.OutOrStdout(), a.CatalogUC.Innovations())
			})
		},
	}

	dossier := &cobra.Command{
		Use:   "dossier <project-id>",
		Short: "Generate a professional overview of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				text, err := a.CatalogUC.Dossier(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}

	overview := &cobra.Command{
		Use:   "overview <tech-id>",
		Short: "Explain a tech stack item in beginner terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				text, err := a.CatalogUC.Overview(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}

	cmd.AddCommand(projects, tech, innovations, dossier, overview)
	return cmd
}
