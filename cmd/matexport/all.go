package main

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/matexport/pkg/auth"
	"github.com/Sternrassler/matexport/pkg/duspot"
	"github.com/Sternrassler/matexport/pkg/insert"
	"github.com/Sternrassler/matexport/pkg/matchingmaterials"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newAllCmd(a *app) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Export every source",
		Long: `Runs the Duspot, Insert feed and Matching Materials exports one after
another. Sources without credentials are skipped. A failing source does not
stop the others; the command fails if any source failed.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			exports := []struct {
				source string
				run    func() (string, error)
			}{
				{duspot.Name, func() (string, error) { return a.exportDuspot(cmd, search, 0, nil) }},
				{insert.Name, func() (string, error) { return a.exportInsertFeed(cmd) }},
				{matchingmaterials.Name, func() (string, error) { return a.exportMatchingMaterials(cmd, "") }},
			}

			var result *multierror.Error
			for _, e := range exports {
				if err := cmd.Context().Err(); err != nil {
					result = multierror.Append(result, err)
					break
				}

				path, err := e.run()
				if errors.Is(err, auth.ErrNoCredentials) {
					log.Warn().Err(err).Str("source", e.source).Msg("Source not configured, skipping")
					continue
				}
				if err != nil {
					log.Error().Err(err).Str("source", e.source).Msg("Export failed")
					result = multierror.Append(result, fmt.Errorf("%s: %w", e.source, err))
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return result.ErrorOrNil()
		}),
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Duspot search keyword")
	return cmd
}
