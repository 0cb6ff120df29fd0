// Package report renders an analysis record as a Markdown document and
// converts it to HTML for browser delivery.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"confmeta/models"
)

// Markdown renders the full analysis report as a Markdown document.
func Markdown(rec *models.AnalysisRecord) string {
	var b strings.Builder

	title := rec.Label
	if title == "" {
		title = "Meta-analysis"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Confidence level: %.0f%%\n\n", rec.Level*100)

	writeStudies(&b, rec)
	writeConfidenceSet(&b, rec)
	writeGamma(&b, rec)
	writeClassic(&b, rec)

	return b.String()
}

// HTML renders the report as a standalone HTML fragment.
func HTML(rec *models.AnalysisRecord) string {
	md := Markdown(rec)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}

func writeStudies(b *strings.Builder, rec *models.AnalysisRecord) {
	set := rec.Studies
	b.WriteString("## Studies\n\n")
	b.WriteString("| Study | Estimate | SE | Weight |\n")
	b.WriteString("|---|---|---|---|\n")
	weights := set.EffectiveWeights()
	for i, est := range set.Estimates {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			set.Label(i), num(est), num(set.StandardErrors[i]), num(weights[i]))
	}
	b.WriteString("\n")
}

func writeConfidenceSet(b *strings.Builder, rec *models.AnalysisRecord) {
	res := rec.Result
	if res == nil {
		return
	}
	b.WriteString("## Harmonic mean confidence set\n\n")
	if res.Empty() {
		fmt.Fprintf(b, "The confidence set is **empty**: no effect size reaches the %.0f%% level. "+
			"The p-value function peaks at mu = %s with p = %s.\n\n",
			res.Level*100, num(res.ForestPlotPoint.X), num(res.ForestPlotPoint.PValue))
		return
	}
	if len(res.Intervals) > 1 {
		fmt.Fprintf(b, "The confidence set is a union of %d disjoint intervals.\n\n", len(res.Intervals))
	}
	b.WriteString("| Lower | Upper | Width |\n")
	b.WriteString("|---|---|---|\n")
	for _, iv := range res.Intervals {
		fmt.Fprintf(b, "| %s | %s | %s |\n", num(iv.Lower), num(iv.Upper), num(iv.Width()))
	}
	b.WriteString("\n")
}

func writeGamma(b *strings.Builder, rec *models.AnalysisRecord) {
	res := rec.Result
	if res == nil || len(res.Gamma) == 0 {
		return
	}
	b.WriteString("## Gamma diagnostics\n\n")
	b.WriteString("Local p-value minima between the confidence regions; small values flag conflicting studies.\n\n")
	b.WriteString("| mu | p-value |\n")
	b.WriteString("|---|---|\n")
	for _, g := range res.Gamma {
		fmt.Fprintf(b, "| %s | %s |\n", num(g.X), num(g.PValue))
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "Arithmetic mean: %s\n\n", num(res.GammaMean))
	if res.GammaHMeanUndefined {
		b.WriteString("Harmonic mean: undefined (a gamma p-value is exactly zero)\n\n")
	} else {
		fmt.Fprintf(b, "Harmonic mean: %s\n\n", num(res.GammaHMean))
	}
}

func writeClassic(b *strings.Builder, rec *models.AnalysisRecord) {
	cs := rec.Classic
	if cs == nil {
		return
	}
	b.WriteString("## Classical comparison\n\n")
	b.WriteString("| Method | Estimate | Lower | Upper | p-value |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(b, "| Fixed effect | %s | %s | %s | %s |\n",
		num(cs.Fixed.Estimate), num(cs.Fixed.Lower), num(cs.Fixed.Upper), num(cs.Fixed.PValue))
	fmt.Fprintf(b, "| Random effects | %s | %s | %s | %s |\n",
		num(cs.Random.Estimate), num(cs.Random.Lower), num(cs.Random.Upper), num(cs.Random.PValue))
	b.WriteString("\n")
	fmt.Fprintf(b, "Heterogeneity: Q = %s (df = %d, p = %s), I2 = %s%%, tau2 = %s\n",
		num(cs.Q), cs.DF, num(cs.QPValue), num(cs.I2*100), num(cs.Tau2))
}

// num formats a float for the report, mapping NaN to a dash.
func num(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%.4g", v)
}
