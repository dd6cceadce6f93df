package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/flashnarrative/internal/kpi"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/pipeline"
)

var (
	colorGreen = lipgloss.Color("78")
	colorRed   = lipgloss.Color("203")
	colorAmber = lipgloss.Color("214")
	colorBlue  = lipgloss.Color("75")
	colorDim   = lipgloss.Color("242")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBlue).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Foreground(colorDim).Width(18)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	errStyle     = lipgloss.NewStyle().Foreground(colorRed)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	skipStyle    = lipgloss.NewStyle().Foreground(colorAmber)
	sourceStyle  = lipgloss.NewStyle().Foreground(colorBlue).Width(24)
	sentStyle    = lipgloss.NewStyle().Width(13)
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// sentimentColor maps a label to its display color.
func sentimentColor(s mention.Sentiment) lipgloss.Color {
	switch s {
	case mention.Positive, mention.Appreciation:
		return colorGreen
	case mention.Negative, mention.Anger:
		return colorRed
	case mention.Mixed:
		return colorAmber
	default:
		return colorDim
	}
}

func title(s string) string {
	return titleStyle.Render(s)
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

// renderStages lists one line per adapter call.
func renderStages(reports []pipeline.StageReport, cacheHit bool) string {
	var b strings.Builder
	b.WriteString(title("Stages") + "\n")
	if cacheHit {
		b.WriteString(dimStyle.Render("  served from cache") + "\n")
		return b.String()
	}
	for _, r := range reports {
		line := fmt.Sprintf("  %-11s %-11s", r.Stage, r.Adapter)
		switch {
		case r.Skipped:
			line += skipStyle.Render("skipped")
		case r.Err != nil:
			line += errStyle.Render("failed: " + truncate(r.Err.Error(), 80))
		default:
			line += okStyle.Render(fmt.Sprintf("%d mentions", r.Count)) +
				dimStyle.Render(fmt.Sprintf(" (%s)", r.Dur.Round(time.Millisecond)))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// renderMentions lists mentions newest first as given.
func renderMentions(ms []mention.Mention, now time.Time) string {
	var b strings.Builder
	b.WriteString(title(fmt.Sprintf("Mentions (%s)", humanize.Comma(int64(len(ms))))) + "\n")
	for _, m := range ms {
		age := "undated"
		if m.Dated() {
			age = humanize.RelTime(m.Published, now, "ago", "from now")
		}
		label := m.Sentiment.String()
		if label == "" {
			label = "-"
		}
		b.WriteString("  " +
			sentStyle.Foreground(sentimentColor(m.Sentiment)).Render(label) +
			sourceStyle.Render(truncate(m.Source, 23)) +
			truncate(m.Text, 90) +
			dimStyle.Render("  "+age) + "\n")
	}
	return b.String()
}

// renderKPIs prints the metric bundle.
func renderKPIs(k kpi.Bundle) string {
	var b strings.Builder
	b.WriteString(title("KPIs") + "\n")
	b.WriteString(row("Mentions", humanize.Comma(int64(k.Total))) + "\n")
	b.WriteString(row("Reach", humanize.Comma(k.Reach)) + "\n")
	b.WriteString(row("Media impact", humanize.Comma(int64(k.MIS))) + "\n")
	b.WriteString(row("Message pull", fmt.Sprintf("%.1f%%", k.MPI)) + "\n")
	b.WriteString(row("Engagement", humanize.FormatFloat("#,###.##", k.EngagementRate)) + "\n")

	b.WriteString(title("Share of voice") + "\n")
	for i, brand := range k.Brands {
		share := 0.0
		if i < len(k.SOV) {
			share = k.SOV[i]
		}
		name := brand
		if brand == k.Primary {
			name += " *"
		}
		b.WriteString(row(name, fmt.Sprintf("%5.1f%% %s", share, bar(share))) + "\n")
	}

	b.WriteString(title("Sentiment") + "\n")
	for _, s := range mention.Sentiments {
		v, ok := k.SentimentRatio[s]
		if !ok {
			continue
		}
		style := lipgloss.NewStyle().Foreground(sentimentColor(s))
		b.WriteString(labelStyle.Render(s.String()) + style.Render(fmt.Sprintf("%5.1f%% %s", v, bar(v))) + "\n")
	}
	return b.String()
}

// bar draws a 20-cell bar for a percentage.
func bar(pct float64) string {
	n := int(pct/5 + 0.5)
	if n > 20 {
		n = 20
	}
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n) + dimStyle.Render(strings.Repeat("░", 20-n))
}
