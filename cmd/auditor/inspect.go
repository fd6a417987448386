package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/auditor"
	"github.com/brunobiangulo/auditor/parser"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks <report.pdf>",
	Short: "Print the text blocks extracted from a PDF report",
	Long: `Prints every text block of the report with its page, row, column and X
position, which is what the vote extractor works on. Useful to tune the
header labels, round markers and cell gap in the config file.`,
	Args: cobra.ExactArgs(1),
	RunE: runBlocks,
}

var roundsCmd = &cobra.Command{
	Use:   "rounds [report.pdf] [tabulation.csv|xlsx]",
	Short: "Show the round detected in a PDF and the rounds present in a tabulation",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRounds,
}

func runBlocks(cmd *cobra.Command, args []string) error {
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

	blocks, err := eng.Blocks(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(blocks)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tROW\tCOL\tX\tTEXT")
	for _, b := range blocks {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.1f\t%s\n", b.Page, b.Row, b.Column, b.X, b.Text)
	}
	return tw.Flush()
}

// runRounds accepts the files in any order; the PDF is told apart by its
// extension.
func runRounds(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, err := auditor.New(cfg)
	if err != nil {
		return err
	}

	var pdfPath, tablePath string
	for _, a := range args {
		if parser.FormatOf(a) == "pdf" {
			pdfPath = a
		} else {
			tablePath = a
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	detected, rounds, err := eng.Rounds(ctx, pdfPath, tablePath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if pdfPath != "" {
		if detected == "" {
			fmt.Fprintf(out, "%s: no round marker found\n", pdfPath)
		} else {
			fmt.Fprintf(out, "%s: round %s\n", pdfPath, detected)
		}
	}
	if tablePath != "" {
		names := make([]string, len(rounds))
		for i, r := range rounds {
			names[i] = string(r)
		}
		fmt.Fprintf(out, "%s: rounds %s\n", tablePath, strings.Join(names, ", "))
	}
	return nil
}
