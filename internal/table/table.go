// Package table builds the row/column payloads handed to the host renderer.
package table

import (
	"encoding/json"
	"time"
)

// Table is a rendered result: named columns and rows of cells.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row is one table row. It has one cell per column.
type Row []Cell

// Cell is a single table value. Implementations are Text, DateTime and Link.
type Cell interface {
	json.Marshaler
	cell()
}

// Text is a plain string cell.
type Text string

// DateTime is a timestamp cell. The host renderer formats it for the
// viewer's locale.
type DateTime struct {
	ISO string
}

// Link is a clickable cell.
type Link struct {
	URL   string
	Label string
}

func (Text) cell()     {}
func (DateTime) cell() {}
func (Link) cell()     {}

// MarshalJSON renders the table in its wire form.
func (t Table) MarshalJSON() ([]byte, error) {
	columns := t.Columns
	if columns == nil {
		columns = []string{}
	}
	rows := t.Rows
	if rows == nil {
		rows = []Row{}
	}

	return json.Marshal(struct {
		Type    string   `json:"type"`
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}{
		Type:    "Table",
		Columns: columns,
		Rows:    rows,
	})
}

// MarshalJSON renders the text as a JSON string.
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// MarshalJSON renders {"datetime": "<iso>"}.
func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"datetime": d.ISO})
}

// Time parses the timestamp as RFC 3339.
func (d DateTime) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, d.ISO)
}

// MarshalJSON renders {"link": {"url": ..., "label": ...}}.
func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"link": struct {
			URL   string `json:"url"`
			Label string `json:"label"`
		}{URL: l.URL, Label: l.Label},
	})
}
