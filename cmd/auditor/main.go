package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/auditor"
)

// Exit codes.
const (
	exitPass        = 0
	exitPhaseFailed = 1
	exitError       = 2
)

// errPhaseFailed is returned by the verify command when a phase fails, after
// the result has been printed.
var errPhaseFailed = errors.New("verification failed")

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Overrides
	round         string
	province      string
	strictSummary bool
	deriveValid   bool
	sheet         string
	delimiter     string
)

var rootCmd = &cobra.Command{
	Use:   "auditor",
	Short: "Reconcile an official PDF results report with a vote tabulation",
	Long: `auditor extracts the figures of one electoral round ("VUELTA") from the
official PDF report and from the consolidated tabulation (CSV or XLSX) and
compares them in five ordered phases:

  1. Gender breakdown   female/male votes per candidate
  2. Candidate totals   total votes per candidate
  3. Valid votes
  4. Blanks/nulls
  5. Grand total        valid + blank + null against the reported total

It stops at the first failing phase and reports every discrepancy in it.

Exit status is 0 when all phases pass, 1 when a phase fails and 2 on error.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&sheet, "sheet", "", "XLSX sheet to read (default: first sheet)")
	rootCmd.PersistentFlags().StringVar(&delimiter, "delimiter", "", "CSV delimiter (default: sniffed)")

	verifyCmd.Flags().StringVarP(&round, "round", "r", "", "Round (VUELTA) to verify (default: config, then detected from the PDF)")
	verifyCmd.Flags().StringVar(&province, "province", "", "Province of a provincial report (default: config, then named in the PDF, else all rows)")
	verifyCmd.Flags().BoolVar(&strictSummary, "strict-summary", false, "Fail when repeated summary values disagree")
	verifyCmd.Flags().BoolVar(&deriveValid, "derive-valid", false, "Sum candidate totals when the PDF has no valid-votes line")
	verifyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	blocksCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print blocks as JSON")

	rootCmd.AddCommand(verifyCmd, blocksCmd, roundsCmd)
}

// loadConfig resolves the configuration: file (or defaults), then AUDITOR_*
// environment variables, then flags.
func loadConfig(cmd *cobra.Command) (auditor.Config, error) {
	cfg := auditor.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = auditor.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("round") {
		cfg.Round = round
	}
	if flags.Changed("province") {
		cfg.Province = province
	}
	if flags.Changed("strict-summary") {
		cfg.Table.StrictSummary = strictSummary
	}
	if flags.Changed("derive-valid") {
		cfg.PDF.DeriveValidVotes = deriveValid
	}
	if flags.Changed("sheet") {
		cfg.Sheet = sheet
	}
	if flags.Changed("delimiter") {
		cfg.CSVDelimiter = delimiter
	}
	return cfg, cfg.Validate()
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitPass
	case errors.Is(err, errPhaseFailed):
		return exitPhaseFailed
	default:
		return exitError
	}
}

func main() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errPhaseFailed) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
