package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"contactbridge/lib/restyutil"
	"contactbridge/services/extractor"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var extractJson *bool

func init() {
	extractJson = extractCmd.Flags().Bool("json", false, "Print the record as JSON instead of a table.")
	rootCmd.AddCommand(extractCmd)
}

// pageSource accepts either a url or a path to a saved page, which is
// handy when debugging extraction against downloaded fixtures.
func pageSource(ctx context.Context, arg string) (extractor.DocumentSource, error) {
	if _, err := os.Stat(arg); err == nil {
		f, err := os.Open(arg)
		if err != nil {
			return extractor.DocumentSource{}, err
		}
		defer f.Close()

		doc, err := goquery.NewDocumentFromReader(f)
		if err != nil {
			return extractor.DocumentSource{}, err
		}
		return extractor.NewDocumentSource(doc), nil
	}
	return extractor.FetchPage(ctx, arg, extractor.FetchOptions{
		InstrumentOutput: restyutil.NewFilesystemOutput(".dev/resty/extract"),
	})
}

var extractCmd = &cobra.Command{
	Use:   "extract <page url or html file>",
	Short: "Scrapes a contact page and prints the extracted record.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source, err := pageSource(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		rec, err := extractor.Extract(cmd.Context(), source, extractor.Options{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		if *extractJson {
			encoded, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
				os.Exit(1)
			}
			fmt.Println(string(encoded))
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRows([]table.Row{
			{"First Name", rec.FirstName},
			{"Last Name", rec.LastName},
			{"Email", rec.Email},
			{"Phone", rec.Phone},
			{"DOB", rec.DOB},
			{"Address", rec.Address},
			{"City", rec.City},
			{"State", rec.State},
			{"Zip", rec.Zipcode},
			{"Timezone", rec.Timezone},
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
