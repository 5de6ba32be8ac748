package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kaneboard/kaneboard/internal/health"
)

var riskyCmd = &cobra.Command{
	Use:   "risky",
	Short: "List your projects most at risk of missing their end date",
	RunE:  runRisky,
}

func runRisky(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/dashboard/risky-projects")
	if err != nil {
		return err
	}

	var rows []health.RiskyProject
	if err := json.Unmarshal(resp, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No projects at risk")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tSTATUS\tPROGRESS\tEND\tFORECAST\tCONFIDENCE\tTOP SIGNAL")
	for _, r := range rows {
		conf := "-"
		if r.Confidence != nil {
			conf = fmt.Sprintf("%d%%", *r.Confidence)
		}
		signal := "-"
		if len(r.RiskSignals) > 0 {
			signal = truncate(r.RiskSignals[0], 50)
		}
		fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%s\t%s\t%s\n",
			truncate(r.Name, 30), r.Status,
			formatPercent(r.ActualProgress), formatPercent(r.ExpectedProgress),
			orDash(r.EndDate), orDash(r.ForecastEnd), conf, signal)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
