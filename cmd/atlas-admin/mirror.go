package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gsheet "atlas/internal/sheets/google"
)

func mirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Inspect the spreadsheet audit mirror",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the audit rows mirrored in a year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, _ := cmd.Flags().GetInt("year")
			cfg := gsheet.Config{
				SpreadsheetID:   viper.GetString("google_spreadsheet_id"),
				SheetName:       viper.GetString("google_sheet_name"),
				CredentialsJSON: viper.GetString("google_service_account_json"),
				CredentialsFile: viper.GetString("google_service_account_file"),
			}
			if cfg.SpreadsheetID == "" {
				return errors.New("GOOGLE_SPREADSHEET_ID is not set")
			}
			client, err := gsheet.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			rows, err := client.ListRows(cmd.Context(), year)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "TIMESTAMP\tRESOURCE\tACTION\tID\tDATE\tAMOUNT")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Timestamp.Format(time.RFC3339), r.Resource, r.Action, r.ID, r.Date, r.Amount)
			}
			return nil
		},
	}
	list.Flags().Int("year", time.Now().Year(), "year of the sheet to read")

	cmd.AddCommand(list)
	return cmd
}
