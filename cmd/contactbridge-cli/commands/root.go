package commands

import (
	"context"
	"fmt"
	"os"

	"contactbridge/lib/configutil"
	"contactbridge/lib/crm"
	"contactbridge/lib/serviceutil"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "contactbridge-cli",
	Short: "contactbridge-cli scrapes contact pages and pushes records into the CRM.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	ApiKey     string `json:"apiKey"`
	ApiVersion string `json:"apiVersion"`
	LocationId string `json:"locationId"`
	Source     string `json:"source"`
}

func readCredential() (crm.Credential, Config) {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return crm.Credential{
		APIKey:     cfg.ApiKey,
		APIVersion: cfg.ApiVersion,
		LocationID: cfg.LocationId,
	}, cfg
}

func newClient() *crm.Client {
	cred, cfg := readCredential()
	client, err := crm.NewClient(crm.ClientOptions{
		Credential: cred,
		Source:     cfg.Source,
	})
	if err != nil {
		serviceutil.Fatal("failed to create crm client", err)
	}
	return client
}
