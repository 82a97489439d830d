package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	errorMessageParseTable = "extract: parse table"
	errorMessageNoTable    = "extract: no table in markup"
)

// ErrNoTable reports markup without a <table>.
var ErrNoTable = errors.New(errorMessageNoTable)

// Row is one body row of a table. Cells are keyed by the header text above them.
type Row struct {
	Cells    []string
	byHeader map[string]string
}

// Cell returns the text under header.
func (row Row) Cell(header string) (string, bool) {
	value, found := row.byHeader[header]
	return value, found
}

// Table is the header-to-cell view of a rendered <table>.
type Table struct {
	Headers []string
	Rows    []Row
}

// Column returns the cells under header in row order. Rows missing the column are skipped.
func (table Table) Column(header string) []string {
	column := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if value, found := row.Cell(header); found {
			column = append(column, value)
		}
	}
	return column
}

// ParseTable reads the first <table> in markup. Headers come from the first row holding
// <th> cells; every row holding <td> cells becomes a Row.
func ParseTable(markup string) (Table, error) {
	document, parseErr := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if parseErr != nil {
		return Table{}, fmt.Errorf("%s: %w", errorMessageParseTable, parseErr)
	}
	tableSelection := document.Find("table").First()
	if tableSelection.Length() == 0 {
		return Table{}, ErrNoTable
	}

	table := Table{Headers: []string{}, Rows: []Row{}}
	tableSelection.Find("tr").Each(func(_ int, rowSelection *goquery.Selection) {
		if rowSelection.Closest("table").Get(0) != tableSelection.Get(0) {
			return
		}
		headerCells := rowSelection.ChildrenFiltered("th")
		if headerCells.Length() > 0 && len(table.Headers) == 0 {
			table.Headers = cellTexts(headerCells)
			return
		}
		dataCells := rowSelection.ChildrenFiltered("td")
		if dataCells.Length() == 0 {
			return
		}
		cells := cellTexts(dataCells)
		byHeader := make(map[string]string, len(cells))
		for cellIndex, cell := range cells {
			if cellIndex < len(table.Headers) {
				byHeader[table.Headers[cellIndex]] = cell
			}
		}
		table.Rows = append(table.Rows, Row{Cells: cells, byHeader: byHeader})
	})
	return table, nil
}

func cellTexts(cells *goquery.Selection) []string {
	return cells.Map(func(_ int, cell *goquery.Selection) string {
		if value, hasValue := inputValue(cell); hasValue {
			return value
		}
		return normalizeWhitespace(cell.Text())
	})
}

// inputValue reads the value of a cell that renders only a form input, such as a
// quantity box in the cart.
func inputValue(cell *goquery.Selection) (string, bool) {
	if normalizeWhitespace(cell.Text()) != "" {
		return "", false
	}
	input := cell.Find("input").First()
	if input.Length() == 0 {
		return "", false
	}
	return input.Attr("value")
}
