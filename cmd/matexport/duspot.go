package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/matexport/pkg/duspot"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newDuspotCmd(a *app) *cobra.Command {
	var (
		search      string
		concurrency int
		progress    bool
	)

	cmd := &cobra.Command{
		Use:   "duspot",
		Short: "Export all published, active Duspot listings",
		Long: `Fetches every page of the Duspot products collection
(published=true, spot.active=true) and writes the combined records to
<date>_duspot_data[_<search>].json in the output directory.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			var onProgress func(fetched, total int)
			if progress {
				onProgress = newPageProgress(cmd.ErrOrStderr())
			}

			path, err := a.exportDuspot(cmd, search, concurrency, onProgress)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "only listings matching this keyword")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "pages fetched in parallel (default from config)")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar")

	cmd.AddCommand(newDuspotGetCmd(a))
	return cmd
}

func newDuspotGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a single Duspot product as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			source, err := a.duspotSource(0, nil)
			if err != nil {
				return err
			}

			product, err := source.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), product)
		}),
	}
}

// exportDuspot fetches all listings and writes them to the export file.
func (a *app) exportDuspot(cmd *cobra.Command, search string, concurrency int, onProgress func(fetched, total int)) (string, error) {
	source, err := a.duspotSource(concurrency, onProgress)
	if err != nil {
		return "", err
	}

	opts := duspot.DefaultListOptions()
	opts.Search = search

	records, err := source.FetchAll(cmd.Context(), opts)
	if err != nil {
		return "", err
	}
	return a.writer.Write(duspot.Name, search, records)
}

// newPageProgress returns an OnProgress callback that renders a progress bar
// once the page count is known.
func newPageProgress(w io.Writer) func(fetched, total int) {
	var bar *progressbar.ProgressBar
	return func(fetched, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetWidth(60),
				progressbar.OptionSetDescription("Fetching pages..."),
				progressbar.OptionSetElapsedTime(true),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionThrottle(50*time.Millisecond),
				progressbar.OptionSetRenderBlankState(true),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
			)
		}
		bar.Set(fetched)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
