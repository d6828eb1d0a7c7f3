// Package report renders a stats snapshot for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/rdio-stats/internal/models"
	"github.com/j-veylop/rdio-stats/internal/stats"
)

// Options controls the layout of a report.
type Options struct {
	// Top is the number of talkgroups listed; 0 means 10.
	Top int
	// Width is the chart width in columns; values below 20 are raised.
	Width int
	// Now is printed in the footer; zero means time.Now.
	Now time.Time
}

// Render writes the report for s to w.
func Render(w io.Writer, s *models.Summary, opts Options) error {
	if opts.Top <= 0 {
		opts.Top = 10
	}
	if opts.Width < 20 {
		opts.Width = 20
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	sections := []string{
		TitleStyle.Render("rdio-stats"),
		renderTotals(s),
		SectionStyle.Render("Calls by hour"),
		renderHourChart(s.Hours, opts.Width),
		renderHeatmap(s.Hours),
		"",
		SectionStyle.Render(fmt.Sprintf("Top %d talkgroups", opts.Top)),
		renderBars(stats.TopTalkgroups(s, opts.Top), opts.Width),
		"",
		SectionStyle.Render("Categories"),
		renderTags(s.Tags),
		"",
		renderLastCall(s.LastCall),
		MutedStyle.Render("Generated " + opts.Now.Format(time.RFC1123)),
	}

	_, err := io.WriteString(w, strings.Join(sections, "\n")+"\n")
	return err
}

func renderTotals(s *models.Summary) string {
	card := func(label string, value int64) string {
		return CardStyle.Render(labelStyle.Render(label) + "\n" + valueStyle.Render(strconv.FormatInt(value, 10)))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total", s.Total),
		card("Today", s.Today),
		card("This week", s.Week),
		card("This year", s.Year),
		card("Talkgroups", int64(s.UniqueTalkgroups)),
	)
}

func renderHourChart(hours [24]int64, width int) string {
	data := make([]float64, len(hours))
	for i, v := range hours {
		data[i] = float64(v)
	}

	return asciigraph.Plot(data,
		asciigraph.Height(8),
		asciigraph.Width(width),
		asciigraph.Caption("hour of day 00-23"),
	)
}

// maxLabelWidth caps talkgroup names in the bar chart.
const maxLabelWidth = 24

// heatmapBlocks are Unicode block characters from low to high intensity.
var heatmapBlocks = []rune{'░', '▒', '▓', '█'}

func renderHeatmap(hours [24]int64) string {
	var maxVal int64
	for _, v := range hours {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	colors := []lipgloss.Color{Subtle, Success, Warning, Error}

	var b strings.Builder
	b.WriteString("00 ")
	for i, v := range hours {
		intensity := int(v * int64(len(heatmapBlocks)-1) / maxVal)
		b.WriteString(lipgloss.NewStyle().Foreground(colors[intensity]).Render(string(heatmapBlocks[intensity])))
		if i == 11 {
			b.WriteString(" ")
		}
	}
	b.WriteString(" 23")
	return b.String()
}

func renderBars(list []models.TalkgroupCount, width int) string {
	if len(list) == 0 {
		return MutedStyle.Render("No calls recorded")
	}

	var maxCalls int64
	maxLabel := 0
	labels := make([]string, len(list))
	for i, tc := range list {
		if tc.Calls > maxCalls {
			maxCalls = tc.Calls
		}
		labels[i] = ansi.Truncate(tc.DisplayName, maxLabelWidth, "…")
		if l := ansi.StringWidth(labels[i]); l > maxLabel {
			maxLabel = l
		}
	}

	barWidth := width - maxLabel - 10
	if barWidth < 10 {
		barWidth = 10
	}

	lines := make([]string, 0, len(list))
	for i, tc := range list {
		barLen := int(tc.Calls * int64(barWidth) / maxCalls)
		label := labels[i] + strings.Repeat(" ", maxLabel-ansi.StringWidth(labels[i]))
		bar := lipgloss.NewStyle().Foreground(Primary).Render(strings.Repeat("█", barLen))
		lines = append(lines, fmt.Sprintf("%s │%s %d", label, bar, tc.Calls))
	}
	return strings.Join(lines, "\n")
}

func renderTags(tags map[string]int64) string {
	if len(tags) == 0 {
		return MutedStyle.Render("No calls recorded")
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if tags[names[i]] != tags[names[j]] {
			return tags[names[i]] > tags[names[j]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %s", labelStyle.Render(name), valueStyle.Render(strconv.FormatInt(tags[name], 10)))
	}
	return strings.Join(parts, "  ")
}

func renderLastCall(last *models.LastCall) string {
	if last == nil {
		return labelStyle.Render("Last call: ") + MutedStyle.Render("none")
	}

	at := time.UnixMilli(last.TimestampMillis).Format("2006-01-02 15:04:05")
	return labelStyle.Render("Last call: ") +
		valueStyle.Render(last.DisplayName) +
		labelStyle.Render(fmt.Sprintf(" (%s) at %s", last.ID, at))
}
