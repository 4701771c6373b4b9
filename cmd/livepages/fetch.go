package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/eringen/livepages/beat"
)

// NewFetchCmd creates the fetch command.
// It performs a single poll and prints the ranking, which is handy for
// checking an API key and host before starting the server.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the top pages once and print them",
		Long: `Fetch performs one request against the Chartbeat live top-pages API and
prints rank, visits and title for every page that fits the page limit.

Examples:
  # Print the current ranking
  livepages fetch --api-key KEY --host example.com

  # Print the ranking with referrers as JSON
  livepages fetch --json

  # Print a Markdown report, e.g. for a chat message or an issue
  livepages fetch --markdown`,
		Args: cobra.NoArgs,
		RunE: runFetchCmd,
	}

	cmd.Flags().Int("page-limit", 0, "number of ranks to print (default 10)")
	cmd.Flags().BoolP("json", "j", false, "output the pages in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "output the pages as a Markdown table")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

func runFetchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return errors.New("an API key is required (--api-key or CHARTBEAT_API_KEY)")
	}

	cache := beat.NewCache(cfg.PageLimit)
	poller := beat.NewPoller(cache, cfg.NewClient(), 0, nil)
	if !poller.Tick(contextOrBackground(cmd.Context()), nil) {
		return fmt.Errorf("fetch failed: %s", poller.Status().LastError)
	}
	pages := cache.Latest()

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pages)
	}

	if asMarkdown, _ := cmd.Flags().GetBool("markdown"); asMarkdown {
		return writeMarkdown(out, cfg.Host, pages)
	}

	if len(pages) == 0 {
		fmt.Fprintln(out, "No pages")
		return nil
	}
	return writeTable(out, pages)
}

// writeTable prints rank, visits and title for each page.
func writeTable(w io.Writer, pages []beat.PageInfo) error {
	rows := make([][]string, 0, len(pages))
	for i, p := range pages {
		rows = append(rows, []string{strconv.Itoa(i), strconv.Itoa(p.Visits), p.Title})
	}
	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Visits", "Title")
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("build table: %w", err)
	}
	return table.Render()
}

// writeMarkdown writes the ranking as a Markdown table with each page's top referrer.
func writeMarkdown(w io.Writer, host string, pages []beat.PageInfo) error {
	md := markdown.NewMarkdown(w)
	md.H1("Top pages on " + host)
	md.PlainText("")

	rows := make([][]string, 0, len(pages))
	for i, p := range pages {
		top := "-"
		if len(p.Referrers) > 0 {
			top = p.Referrers[0].Domain + " (" + strconv.Itoa(p.Referrers[0].Visitors) + ")"
		}
		rows = append(rows, []string{strconv.Itoa(i), strconv.Itoa(p.Visits), p.Title, top})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Visits", "Title", "Top referrer"},
		Rows:   rows,
	})
	return md.Build()
}
