package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/autoreach-api/internal/http/mw"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

var (
	aeoURL      string
	aeoCustomer string
	aeoMaxPages int
)

var aeoCmd = &cobra.Command{
	Use:     "aeo",
	Short:   "Run an AEO audit and print the report as JSON",
	Example: `  autoreach aeo --url example.com --max-pages 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(aeoURL) == "" {
			return errors.New("--url is required")
		}
		_, svcs, err := loadServices()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		report, err := svcs.Audit.Run(ctx, mw.LocalUserID, models.AEORequest{
			URL:          aeoURL,
			CustomerName: aeoCustomer,
			MaxPages:     aeoMaxPages,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	aeoCmd.Flags().StringVar(&aeoURL, "url", "", "Site to audit")
	aeoCmd.Flags().StringVar(&aeoCustomer, "customer", "", "Display name, derived from the host when empty")
	aeoCmd.Flags().IntVar(&aeoMaxPages, "max-pages", 0, "Pages to crawl, 1-5 (default from AEO_MAX_PAGES)")
}
