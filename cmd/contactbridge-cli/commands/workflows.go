package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(workflowsCmd)
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Lists the workflows contacts can be enrolled in.",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		workflows, err := client.ListWorkflows(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "Status"})
		for _, wf := range workflows {
			t.AppendRow(table.Row{wf.ID, wf.Name, wf.Status})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
