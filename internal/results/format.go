package results

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// BarWidth is the column width of the text bar chart.
const BarWidth = 20

const barRune = "█"

// Row is one histogram entry scaled to a percentage of shots.
type Row struct {
	Label   string
	Percent float64
}

// Text formats the percentage the way the visual histogram labels it.
func (r Row) Text() string {
	return strconv.FormatFloat(r.Percent, 'f', 1, 64) + "%"
}

// Rows scales every count to a percentage of shots, rounded to one decimal,
// keeping the order the counts arrived in. Shots of zero or less divide by
// one rather than failing.
func Rows(m Measurement) []Row {
	total := divisor(m.Shots)
	rows := make([]Row, 0, len(m.Counts))
	for _, c := range m.Counts {
		pct := math.Round(float64(c.N)/total*1000) / 10
		rows = append(rows, Row{Label: c.State, Percent: min(max(pct, 0), 100)})
	}
	return rows
}

// FormatCounts renders a monospace bar chart, highest count first. Ties keep
// their original order.
func FormatCounts(counts Counts, shots int) string {
	sorted := slices.Clone(counts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].N > sorted[j].N })

	total := divisor(shots)
	lines := make([]string, 0, len(sorted))
	for _, c := range sorted {
		frac := float64(c.N) / total
		n := int(math.Floor(frac*BarWidth + 0.5))
		bar := padBar(strings.Repeat(barRune, max(n, 0)))
		pct := strconv.FormatFloat(math.Round(frac*100*100)/100, 'f', 2, 64)
		lines = append(lines, fmt.Sprintf("|%s⟩  %s  %s%%", c.State, bar, pct))
	}
	return strings.Join(lines, "\n")
}

// padBar truncates or right-pads bar to BarWidth columns.
func padBar(bar string) string {
	n := utf8.RuneCountInString(bar)
	if n > BarWidth {
		return string([]rune(bar)[:BarWidth])
	}
	return bar + strings.Repeat(" ", BarWidth-n)
}

func divisor(shots int) float64 {
	if shots <= 0 {
		return 1
	}
	return float64(shots)
}
