package calendar

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calendarPage = `<html><body>
<table id="calendar" class="table">
  <thead><tr><th>Time</th></tr></thead>
  <tbody>
    <tr class="date"><td colspan="6">Friday, January 03, 2025</td></tr>
    <tr class="calendar-row" data-id="1">
      <td>08:30 AM</td>
      <td><span class="calendar-iso">United States</span></td>
      <td><a class="calendar-event">Non   Farm
          Payrolls</a></td>
      <td class="calendar-item"><span class="calendar-importance-3"></span></td>
      <td>256K</td>
      <td>212K</td>
    </tr>
    <tr class="calendar-row"><td>10:00</td><td>US</td><td>JOLTs</td><td></td></tr>
    <tr class="ad"><td>sponsored</td></tr>
  </tbody>
</table>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractRows(t *testing.T) {
	rows, err := ExtractRows(mustDoc(t, calendarPage))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, RowDateHeader, rows[0].Kind)
	assert.Equal(t, "Friday, January 03, 2025", rows[0].Cells[0].Text)

	data := rows[1]
	assert.Equal(t, RowData, data.Kind)
	require.Len(t, data.Cells, 6)
	assert.Equal(t, "08:30 AM", data.Cells[0].Text)
	assert.Equal(t, "United States", data.Cells[1].Text)
	assert.Equal(t, "Non Farm Payrolls", data.Cells[2].Text)
	assert.Equal(t, []string{"calendar-item", "calendar-importance-3"}, data.Cells[3].Classes)

	assert.Len(t, rows[2].Cells, 4)
}

func TestExtractRowsFeedsParser(t *testing.T) {
	rows, err := ExtractRows(mustDoc(t, calendarPage))
	require.NoError(t, err)

	events, stats := testParser(t, calendarTestNow).Parse(rows)
	assert.Equal(t, 1, stats.Kept)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, "NFP - Non-Farm Payroll", events["2025-01-03"].Name)
}

func TestExtractRowsMissingStructure(t *testing.T) {
	tests := map[string]string{
		"no table":   `<html><body><p>blocked</p></body></html>`,
		"other id":   `<table id="news"><tr><td>x</td></tr></table>`,
		"empty body": `<table id="calendar"></table>`,
	}
	for name, html := range tests {
		t.Run(name, func(t *testing.T) {
			rows, err := ExtractRows(mustDoc(t, html))
			assert.ErrorIs(t, err, ErrNoCalendarTable)
			assert.Empty(t, rows)
		})
	}
}
