package main

import (
	"fmt"

	"github.com/Sternrassler/matexport/pkg/insert"
	"github.com/spf13/cobra"
)

func newInsertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Export Insert Marktplaats materials",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "categories",
			Short: "List the known material categories",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				for _, name := range insert.Categories() {
					id, _ := insert.CategoryID(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", id, name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "category <name>",
			Short: "Export the products of one category via GraphQL",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				category, err := a.insertClient().Category(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				path, err := a.writer.Write(insert.Name, args[0], category)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "feed",
			Short: "Export the complete XML feed",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, args []string) error {
				path, err := a.exportInsertFeed(cmd)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}),
		},
	)
	return cmd
}

func (a *app) exportInsertFeed(cmd *cobra.Command) (string, error) {
	materials, err := a.insertClient().Feed(cmd.Context())
	if err != nil {
		return "", err
	}
	return a.writer.Write(insert.Name, "feed", materials)
}
