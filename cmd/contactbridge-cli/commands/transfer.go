package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"contactbridge/lib/crm"
	"contactbridge/lib/restyutil"
	"contactbridge/services/extractor"
	"contactbridge/services/transfer"

	"github.com/antzucaro/matchr"
	"github.com/spf13/cobra"
)

var (
	transferWorkflowId   *string
	transferWorkflowName *string
	transferDelayMs      *int
)

func init() {
	transferWorkflowId = transferCmd.Flags().String("workflow", "", "Workflow id to enroll the contact in.")
	transferWorkflowName = transferCmd.Flags().String("workflow-name", "", "Workflow name to enroll the contact in, matched fuzzily.")
	transferDelayMs = transferCmd.Flags().Int("delay", 0, "Milliseconds to wait between creation and enrollment.")
	rootCmd.AddCommand(transferCmd)
}

// resolveWorkflow turns a human-entered name into a workflow id. Names
// come from people squinting at a dropdown, exact equality is too
// strict.
func resolveWorkflow(ctx context.Context, client *crm.Client, name string) (crm.WorkflowRef, error) {
	workflows, err := client.ListWorkflows(ctx)
	if err != nil {
		return crm.WorkflowRef{}, err
	}

	var best crm.WorkflowRef
	bestScore := 0.0
	for _, wf := range workflows {
		score := matchr.JaroWinkler(wf.Name, name, false)
		if score > bestScore {
			bestScore = score
			best = wf
		}
	}
	if bestScore < 0.8 {
		return crm.WorkflowRef{}, fmt.Errorf("no workflow resembling '%s'", name)
	}
	return best, nil
}

var transferCmd = &cobra.Command{
	Use:   "transfer <page url> [--workflow <id> | --workflow-name <name>]",
	Short: "Scrapes a contact page and pushes the record into the CRM.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()

		workflowID := *transferWorkflowId
		if workflowID == "" && *transferWorkflowName != "" {
			wf, err := resolveWorkflow(cmd.Context(), client, *transferWorkflowName)
			if err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
				os.Exit(1)
			}
			slog.Info("resolved workflow", "id", wf.ID, "name", wf.Name)
			workflowID = wf.ID
		}

		source, err := extractor.FetchPage(cmd.Context(), args[0], extractor.FetchOptions{
			InstrumentOutput: restyutil.NewFilesystemOutput(".dev/resty/transfer"),
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		rec, err := extractor.Extract(cmd.Context(), source, extractor.Options{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		orch := transfer.NewOrchestrator(client, transfer.Options{
			EnrollDelay: time.Duration(*transferDelayMs) * time.Millisecond,
		})
		outcome, err := orch.Transfer(cmd.Context(), rec, workflowID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		if outcome.Duplicate {
			fmt.Printf("contact already exists: %s\n", outcome.ContactID)
		} else {
			fmt.Printf("contact created: %s\n", outcome.ContactID)
		}
		if outcome.Enrolled {
			fmt.Printf("enrolled in workflow %s\n", workflowID)
		}
	},
}
