package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/auditor"
	"github.com/brunobiangulo/auditor/record"
	"github.com/brunobiangulo/auditor/verify"
)

var jsonOutput bool

var verifyCmd = &cobra.Command{
	Use:   "verify <report.pdf> <tabulation.csv|xlsx>",
	Short: "Verify a PDF report against a tabulation",
	Example: `  auditor verify resultados.pdf resultados.csv --round 1
  auditor verify resultados.pdf resultados.xlsx --sheet Presidente --json`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, err := auditor.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	res, err := eng.VerifyFiles(ctx, args[0], args[1], record.Round(cfg.Round))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		renderText(out, res)
	}

	if !res.Passed {
		return errPhaseFailed
	}
	return nil
}

// renderText prints a verification result for a terminal.
func renderText(w io.Writer, res *verify.Result) {
	if res.Passed {
		fmt.Fprintf(w, "Round %s: PASSED (%d phases)\n\n", res.Round, len(res.Phases))
	} else {
		fmt.Fprintf(w, "Round %s: FAILED at phase %d (%s)\n\n", res.Round, res.Failure.Phase, res.Failure.Name)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tNAME\tSTATUS")
	for _, o := range res.Phases {
		status := "pass"
		if !o.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", o.Phase, o.Name, status)
	}
	for _, p := range verify.Phases[len(res.Phases):] {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p, p.Name(), "not evaluated")
	}
	tw.Flush()

	if f := res.Failure; f != nil {
		fmt.Fprintf(w, "\nPhase %d compares %s.\n", f.Phase, f.Description)
		fmt.Fprintf(w, "Discrepancies (%d):\n", len(f.Discrepancies))
		for _, d := range f.Discrepancies {
			fmt.Fprintf(w, "  - %s\n", d)
		}
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(res.Warnings))
		for _, msg := range res.Warnings {
			fmt.Fprintf(w, "  - %s\n", strings.TrimSpace(msg))
		}
	}
}
