package main

import (
	"fmt"

	"github.com/Sternrassler/matexport/pkg/matchingmaterials"
	"github.com/spf13/cobra"
)

func newMatchingMaterialsCmd(a *app) *cobra.Command {
	var material string

	cmd := &cobra.Command{
		Use:   "matching-materials",
		Short: "Export Matching Materials offers and requests",
		Long: `Searches Matching Materials with the default filter (all offers and
requests), optionally restricted to one material category, and writes the
result to <date>_matching-materials_data[_<material>].json.

Authentication uses the Microsoft device code flow unless
matching_materials.flow is set to client_credentials or static.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			path, err := a.exportMatchingMaterials(cmd, material)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&material, "material", "m", "", "material category name (see 'matching-materials categories')")

	cmd.AddCommand(&cobra.Command{
		Use:   "categories",
		Short: "List the known material categories",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			for _, name := range matchingmaterials.Materials() {
				id, _ := matchingmaterials.MaterialID(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", id, name)
			}
			return nil
		}),
	})
	return cmd
}

func (a *app) exportMatchingMaterials(cmd *cobra.Command, material string) (string, error) {
	filter := matchingmaterials.DefaultFilter()
	if material != "" {
		var err error
		if filter, err = filter.WithMaterial(material); err != nil {
			return "", err
		}
	}

	source, err := a.matchingMaterialsSource(cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}

	records, err := source.Search(cmd.Context(), filter)
	if err != nil {
		return "", err
	}
	return a.writer.Write(matchingmaterials.Name, material, records)
}
