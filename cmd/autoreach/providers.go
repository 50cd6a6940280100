package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var providersJSON bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers in priority order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, svcs, err := loadServices()
		if err != nil {
			return err
		}
		statuses := svcs.Registry.Debug()
		out := cmd.OutOrStdout()
		if providersJSON {
			return printJSON(out, statuses)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tID\tNAME\tENABLED\tCONFIGURED\tMODEL")
		for _, s := range statuses {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%s\n", s.Position, s.ID, s.Name, s.Enabled, s.Configured, s.DefaultModel)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if cfg.MockMode() {
			fmt.Fprintln(cmd.ErrOrStderr(), "no provider keys configured: analyses run in mock mode")
		}
		return nil
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersJSON, "json", false, "Print as JSON")
}
