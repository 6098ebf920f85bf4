package main

import (
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/registry"
	"github.com/tangocommunity/crawler/internal/store"
)

var sourcesProductsOnly bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured crawl sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		products, err := registry.ProductsFromFile(cfg.Registry.ProductsFile)
		if err != nil {
			return eris.Wrap(err, "load product sources")
		}
		renderSources(os.Stdout, "Product sources", products.All())

		if sourcesProductsOnly {
			return nil
		}
		if err := cfg.Validate("sources"); err != nil {
			return err
		}
		st, err := store.NewPostgres(ctx, cfg.Database.DSN(), store.Options{MaxConns: 2})
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		events, err := registry.NewDBRegistry(st.Pool()).ActiveSources(ctx)
		if err != nil {
			return err
		}
		renderSources(os.Stdout, "Event sources", events)
		return nil
	},
}

func renderSources(w io.Writer, title string, sources []model.CrawlSource) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"ID", "Name", "Strategy", "Frequency", "Active", "Last crawled", "URL"})
	for _, s := range sources {
		last := "never"
		if s.LastCrawledAt != nil {
			last = s.LastCrawledAt.Local().Format(time.DateTime)
		}
		t.AppendRow(table.Row{
			s.ID, s.Name, s.ParserConfig.Strategy, s.Frequency, s.Active, last, s.BaseURL,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(sources)})
	t.Render()
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesProductsOnly, "products", false, "list only the static product sources")
	rootCmd.AddCommand(sourcesCmd)
}
