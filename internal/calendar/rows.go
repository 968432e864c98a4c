package calendar

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoCalendarTable is returned when the document lacks table#calendar or
// its body.
var ErrNoCalendarTable = errors.New("calendar: table#calendar with tbody not found")

const (
	tableSelector  = "table#calendar"
	headerRowClass = "date"
	dataRowClass   = "calendar-row"
)

// RowKind tells header rows from data rows.
type RowKind int

const (
	RowOther RowKind = iota
	RowDateHeader
	RowData
)

// Cell is one table cell reduced to its text and the classes found on it
// or any of its descendants.
type Cell struct {
	Text    string
	Classes []string
}

// Row is a logical calendar row, already split into cells.
type Row struct {
	Kind  RowKind
	Cells []Cell
}

// HeaderRow builds a date-header row carrying label.
func HeaderRow(label string) Row {
	return Row{Kind: RowDateHeader, Cells: []Cell{{Text: label}}}
}

// DataRow builds a data row from cells in document order.
func DataRow(cells ...Cell) Row {
	return Row{Kind: RowData, Cells: cells}
}

// ExtractRows walks table#calendar > tbody > tr in document order.
func ExtractRows(doc *goquery.Document) ([]Row, error) {
	table := doc.Find(tableSelector).First()
	if table.Length() == 0 {
		return nil, ErrNoCalendarTable
	}
	bodies := table.ChildrenFiltered("tbody")
	if bodies.Length() == 0 {
		return nil, ErrNoCalendarTable
	}

	rows := make([]Row, 0)
	bodies.ChildrenFiltered("tr").Each(func(_ int, tr *goquery.Selection) {
		var kind RowKind
		switch {
		case tr.HasClass(headerRowClass):
			kind = RowDateHeader
		case tr.HasClass(dataRowClass):
			kind = RowData
		default:
			return
		}

		row := Row{Kind: kind}
		tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
			row.Cells = append(row.Cells, cellOf(td))
		})
		rows = append(rows, row)
	})
	return rows, nil
}

func cellOf(td *goquery.Selection) Cell {
	c := Cell{Text: strings.Join(strings.Fields(td.Text()), " ")}
	c.Classes = append(c.Classes, classesOf(td)...)
	td.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		c.Classes = append(c.Classes, classesOf(s)...)
	})
	return c
}

func classesOf(s *goquery.Selection) []string {
	v, ok := s.Attr("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}
