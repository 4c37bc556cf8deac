package results

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qubitpage/qbp/internal/page"
)

func decodeMeasurement(t *testing.T, raw string) Measurement {
	t.Helper()
	var m Measurement
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestCountsKeepWireOrder(t *testing.T) {
	m := decodeMeasurement(t, `{"counts":{"11":7,"00":3,"01":7},"shots":17}`)
	require.Equal(t, Counts{{"11", 7}, {"00", 3}, {"01", 7}}, m.Counts)
	require.Equal(t, 17, m.Shots)
	require.Equal(t, 17, m.Counts.Total())

	out, err := json.Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `{"counts":{"11":7,"00":3,"01":7},"shots":17}`, string(out))
	require.True(t, strings.HasPrefix(string(out), `{"counts":{"11":7,"00":3`))
}

func TestCountsDecodeEdgeCases(t *testing.T) {
	m := decodeMeasurement(t, `{"counts":null}`)
	require.True(t, m.Empty())

	m = decodeMeasurement(t, `{"counts":{"0":2.0},"shots":2}`)
	require.Equal(t, Counts{{"0", 2}}, m.Counts)

	m = decodeMeasurement(t, `{"counts":{"00":512.0,"11":512.0},"shots":1024.0}`)
	require.Equal(t, 1024, m.Shots)
	require.Equal(t, Counts{{"00", 512}, {"11", 512}}, m.Counts)

	m = decodeMeasurement(t, `{"counts":{"00":1,"11":2,"00":5}}`)
	require.Equal(t, Counts{{"00", 5}, {"11", 2}}, m.Counts)
	require.Equal(t, 0, m.Shots)

	var bad Measurement
	require.Error(t, json.Unmarshal([]byte(`{"counts":{},"shots":"lots"}`), &bad))
	require.Error(t, json.Unmarshal([]byte(`{"counts":[1,2]}`), &bad))
	require.Error(t, json.Unmarshal([]byte(`{"counts":{"0":"many"}}`), &bad))
}

func TestRowsNormalizeInSourceOrder(t *testing.T) {
	rows := Rows(Measurement{Counts: Counts{{"11", 512}, {"00", 512}}, Shots: 1024})
	require.Equal(t, []Row{{"11", 50}, {"00", 50}}, rows)
	require.Equal(t, "50.0%", rows[0].Text())

	rows = Rows(Measurement{Counts: Counts{{"0", 1}, {"1", 2}}, Shots: 3})
	require.Equal(t, 33.3, rows[0].Percent)
	require.Equal(t, 66.7, rows[1].Percent)
}

func TestRowsStayInRange(t *testing.T) {
	for _, shots := range []int{1, 7, 1024} {
		rows := Rows(Measurement{Counts: Counts{{"a", 0}, {"b", shots}, {"c", shots / 2}}, Shots: shots})
		for _, r := range rows {
			require.GreaterOrEqual(t, r.Percent, 0.0)
			require.LessOrEqual(t, r.Percent, 100.0)
		}
	}
}

func TestZeroShotsDoesNotPanic(t *testing.T) {
	m := Measurement{Counts: Counts{{"00", 3}, {"11", 0}}}
	require.NotPanics(t, func() {
		rows := Rows(m)
		require.Len(t, rows, 2)
		require.Equal(t, 100.0, rows[0].Percent)
		require.Equal(t, 0.0, rows[1].Percent)
	})
	require.NotPanics(t, func() {
		out := FormatCounts(m.Counts, 0)
		require.Contains(t, out, "|00⟩  "+strings.Repeat("█", BarWidth)+"  300.00%")
	})
}

func TestFormatCountsStableDescending(t *testing.T) {
	counts := Counts{{"00", 3}, {"11", 7}, {"01", 7}}
	out := FormatCounts(counts, 17)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "|11⟩"))
	require.True(t, strings.HasPrefix(lines[1], "|01⟩"))
	require.True(t, strings.HasPrefix(lines[2], "|00⟩"))

	// input untouched
	require.Equal(t, Counts{{"00", 3}, {"11", 7}, {"01", 7}}, counts)
}

func TestFormatCountsFullAndEmptyBars(t *testing.T) {
	out := FormatCounts(Counts{{"00", 1}, {"01", 0}}, 1)
	require.Equal(t,
		"|00⟩  "+strings.Repeat("█", 20)+"  100.00%\n"+
			"|01⟩  "+strings.Repeat(" ", 20)+"  0.00%",
		out)
}

func TestFormatCountsTruncatesOverlongBar(t *testing.T) {
	out := FormatCounts(Counts{{"0", 5}}, 2)
	require.Equal(t, "|0⟩  "+strings.Repeat("█", 20)+"  250.00%", out)
}

func TestFormatCountsRoundsHalfUp(t *testing.T) {
	require.Contains(t, FormatCounts(Counts{{"0", 1}}, 800), "  0.13%")
	require.Contains(t, FormatCounts(Counts{{"0", 5}}, 800), "  0.63%")
	require.Contains(t, FormatCounts(Counts{{"0", 1}}, 3), "  33.33%")
}

func TestMountByIDAndFallback(t *testing.T) {
	doc, err := page.ParseString(`<div id="out">old</div><div data-circuit="bell"></div>`)
	require.NoError(t, err)

	ok := Mount(doc, "out", Measurement{Counts: Counts{{"00", 512}, {"11", 512}}, Shots: 1024})
	require.True(t, ok)
	out := doc.Root().FindID("out")
	rows := out.FindAll(page.Class("qbp-result-row"))
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.Equal(t, "50.0%", r.Find(page.Class("qbp-result-pct")).Text())
		style, _ := r.Find(page.Class("qbp-result-bar")).Attr("style")
		require.True(t, strings.HasPrefix(style, "width:50.0%;"))
	}
	require.NotContains(t, out.Text(), "old")

	require.True(t, Mount(doc, "bell", Measurement{Counts: Counts{{"0", 1}}, Shots: 1}))
	fallback := doc.Root().Find(page.DataEquals("circuit", "bell"))
	require.Equal(t, "|0⟩", fallback.Find(page.Class("qbp-result-state")).Text())

	require.False(t, Mount(doc, "nowhere", Measurement{}))
}

func TestMountEscapesLabels(t *testing.T) {
	doc, err := page.ParseString(`<div id="out"></div>`)
	require.NoError(t, err)
	require.True(t, Mount(doc, "out", Measurement{Counts: Counts{{"<b>", 1}}, Shots: 1}))
	require.Contains(t, doc.String(), "|&lt;b&gt;⟩")
}

func TestTerminalRendering(t *testing.T) {
	m := Measurement{Counts: Counts{{"00", 3}, {"11", 1}}, Shots: 4}
	h := Histogram("bell", m, 40)
	require.Contains(t, h, "bell")
	require.Contains(t, h, "75.0%")
	require.Contains(t, h, "25.0%")
	require.Equal(t, "", Histogram("bell", m, 0))
	require.Contains(t, Histogram("x", Measurement{}, 40), "(no data)")

	require.Contains(t, Table(m), "75.00%")
	require.Contains(t, Table(Measurement{}), "(no data)")
}
