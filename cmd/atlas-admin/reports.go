package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"atlas/internal/core"
	"atlas/internal/export"
	"atlas/internal/services"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print ledger reports",
	}
	cmd.PersistentFlags().String("email", "", "account whose ledger is reported")

	month := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Print the period report of a month, the current one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonthReport,
	}
	month.Flags().String("vehicle", core.AllVehicles, "restrict to one vehicle id")
	month.Flags().String("xlsx", "", "also write the report workbook to this path")

	vehicle := &cobra.Command{
		Use:   "vehicle <id>",
		Short: "Print the metrics of one vehicle",
		Args:  cobra.ExactArgs(1),
		RunE:  runVehicleReport,
	}

	cmd.AddCommand(month, vehicle)
	return cmd
}

func runMonthReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")
	vehicle, _ := cmd.Flags().GetString("vehicle")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")

	repo, cleanup, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	owner, err := ownerID(ctx, repo, email)
	if err != nil {
		return err
	}
	q := services.ReportQuery{Mode: services.ReportModeMonth, Vehicle: vehicle}
	if len(args) == 1 {
		q.Month = args[0]
	}
	result, err := newFinance(repo).Report(ctx, owner, q)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), result.Report)

	if xlsxPath != "" {
		f, err := os.Create(xlsxPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", xlsxPath, err)
		}
		if err := export.WriteReport(f, result.Report, result.Entries); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nworkbook written to %s\n", xlsxPath)
	}
	return nil
}

func printReport(out io.Writer, r core.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Período\t%s a %s\n", r.Filter.Start, r.Filter.End)
	fmt.Fprintf(w, "Receitas\t%s\n", r.Income)
	fmt.Fprintf(w, "Despesas\t%s\n", r.Expense)
	fmt.Fprintf(w, "Saldo\t%s\n", r.Net)
	for _, group := range []struct {
		title  string
		totals []core.CategoryTotal
	}{
		{"Receitas por categoria", r.IncomeByCategory},
		{"Despesas por categoria", r.ExpenseByCategory},
	} {
		if len(group.totals) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\t\n", group.title)
		for _, t := range group.totals {
			fmt.Fprintf(w, "  %s\t%s\n", t.Name, t.Total)
		}
	}
	fmt.Fprintf(w, "\nMês\tReceitas\tDespesas\n")
	for _, b := range r.Trend {
		fmt.Fprintf(w, "%s\t%s\t%s\n", b.Label, b.Income, b.Expense)
	}
}

func runVehicleReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")

	repo, cleanup, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	owner, err := ownerID(ctx, repo, email)
	if err != nil {
		return err
	}
	m, err := newFinance(repo).VehicleMetrics(ctx, owner, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Receitas\t%s\n", m.TotalIncome)
	fmt.Fprintf(w, "Despesas\t%s\n", m.TotalExpense)
	fmt.Fprintf(w, "Saldo\t%s\n", m.Net)
	fmt.Fprintf(w, "Hodômetro\t%d km\n", m.MaxOdometer)
	fmt.Fprintf(w, "Distância\t%d km\n", m.DistanceTotal)
	fmt.Fprintf(w, "Combustível\t%s (%s L)\n", m.TotalFuelCost, m.TotalLiters.StringFixed(3))
	fmt.Fprintf(w, "Consumo médio\t%s km/L\n", m.AvgKmPerLiter.StringFixed(2))
	return nil
}
