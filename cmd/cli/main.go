package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"confmeta/adapters/excel"
	"confmeta/adapters/report"
	"confmeta/app"
	"confmeta/domain/hmean"
	"confmeta/models"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "confmeta",
		Short: "Harmonic-mean confidence sets for meta-analysis",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newPValueCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var (
		level         float64
		alternative   string
		distribution  string
		heterogeneity string
		phi           float64
		tau2          float64
		format        string
	)

	cmd := &cobra.Command{
		Use:   "analyze <studies.csv|studies.xlsx>",
		Short: "Compute the confidence set for a study file",
		Long: `Compute the harmonic-mean confidence set and the classical
fixed- and random-effects comparison for a study file.

The file needs an estimate and a standard error column; weight and
study name columns are picked up when present.

Example: confmeta analyze trials.csv --level 0.95 --format markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := excel.NewStudyReader(args[0]).ReadStudySet()
			if err != nil {
				return err
			}

			req := app.AnalysisRequest{
				Label:   strings.TrimSuffix(args[0], ".csv"),
				Studies: set,
				Level:   level,
				Options: hmean.Options{
					Heterogeneity: hmean.Heterogeneity(heterogeneity),
					Phi:           phi,
					Tau2:          tau2,
					Alternative:   hmean.Alternative(alternative),
					Distribution:  hmean.Distribution(distribution),
				},
			}

			rec, err := app.NewAnalysisService(nil).Run(context.Background(), req)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			case "markdown":
				fmt.Fprint(cmd.OutOrStdout(), report.Markdown(rec))
				return nil
			default:
				printSummary(cmd, rec)
				return nil
			}
		},
	}

	cmd.Flags().Float64Var(&level, "level", 0.95, "Confidence level")
	cmd.Flags().StringVar(&alternative, "alternative", "none", "Alternative: none, less, greater, two-sided")
	cmd.Flags().StringVar(&distribution, "distribution", "chisq", "Null distribution: chisq or f")
	cmd.Flags().StringVar(&heterogeneity, "heterogeneity", "none", "Heterogeneity model: none, additive-phi, additive-tau2")
	cmd.Flags().Float64Var(&phi, "phi", 0, "Multiplicative variance inflation for additive-phi")
	cmd.Flags().Float64Var(&tau2, "tau2", 0, "Between-study variance for additive-tau2")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, markdown")

	return cmd
}

func newPValueCmd() *cobra.Command {
	var (
		alternative  string
		distribution string
	)

	cmd := &cobra.Command{
		Use:   "pvalue <studies-file> <mu...>",
		Short: "Evaluate the p-value function at one or more effect sizes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := excel.NewStudyReader(args[0]).ReadStudySet()
			if err != nil {
				return err
			}

			mus := make([]float64, 0, len(args)-1)
			for _, a := range args[1:] {
				var mu float64
				if _, err := fmt.Sscanf(a, "%g", &mu); err != nil {
					return fmt.Errorf("invalid mu %q: %w", a, err)
				}
				mus = append(mus, mu)
			}

			opts := hmean.Options{
				Alternative:  hmean.Alternative(alternative),
				Distribution: hmean.Distribution(distribution),
			}
			pvals, err := hmean.PValue(set, mus, opts)
			if err != nil {
				return err
			}
			for i, mu := range mus {
				fmt.Fprintf(cmd.OutOrStdout(), "mu=%g\tp=%g\n", mu, pvals[i])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&alternative, "alternative", "none", "Alternative: none, less, greater, two-sided")
	cmd.Flags().StringVar(&distribution, "distribution", "chisq", "Null distribution: chisq or f")

	return cmd
}

func printSummary(cmd *cobra.Command, rec *models.AnalysisRecord) {
	out := cmd.OutOrStdout()
	res := rec.Result

	fmt.Fprintf(out, "Studies: %d, confidence level: %.0f%%\n", rec.Studies.Size(), rec.Level*100)
	if res.Empty() {
		fmt.Fprintf(out, "Confidence set: EMPTY (p-value peaks at mu=%.4g, p=%.4g)\n",
			res.ForestPlotPoint.X, res.ForestPlotPoint.PValue)
	} else {
		fmt.Fprintf(out, "Confidence set (%d interval(s)):\n", len(res.Intervals))
		for _, iv := range res.Intervals {
			fmt.Fprintf(out, "  [%.6g, %.6g]\n", iv.Lower, iv.Upper)
		}
	}
	for _, g := range res.Gamma {
		fmt.Fprintf(out, "Gamma: mu=%.4g p=%.4g\n", g.X, g.PValue)
	}
	if cs := rec.Classic; cs != nil {
		fmt.Fprintf(out, "Fixed effect:   %.6g [%.6g, %.6g]\n", cs.Fixed.Estimate, cs.Fixed.Lower, cs.Fixed.Upper)
		fmt.Fprintf(out, "Random effects: %.6g [%.6g, %.6g]  (tau2=%.4g, I2=%.1f%%)\n",
			cs.Random.Estimate, cs.Random.Lower, cs.Random.Upper, cs.Tau2, cs.I2*100)
	}
}
