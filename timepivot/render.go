package timepivot

import (
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

const bucketHeaderLayout = "2006-01-02 15:04"

// Render writes the pivot as an aligned text table: one header column per row-key
// component followed by one column per time bucket.
func (p *PivotTable) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	if p.IsEmpty() {
		table.SetHeader([]string{"no data"})
		table.Render()
		return
	}

	var header []string
	if p.hasLocation {
		header = append(header, "location")
	}
	header = append(header, "category")
	if p.hasSubcategory {
		header = append(header, "subcategory")
	}
	for _, bucket := range p.columns {
		header = append(header, bucket.Format(bucketHeaderLayout))
	}
	table.SetHeader(header)

	for i, key := range p.keys {
		var row []string
		if p.hasLocation {
			row = append(row, strconv.FormatInt(key.Location, 10))
		}
		row = append(row, key.Category)
		if p.hasSubcategory {
			row = append(row, key.Subcategory)
		}
		for j := range p.columns {
			row = append(row, strconv.FormatInt(p.Get(i, j), 10))
		}
		table.Append(row)
	}
	table.Render()
}

// String renders the pivot to a string.
func (p *PivotTable) String() string {
	var sb strings.Builder
	p.Render(&sb)
	return sb.String()
}
