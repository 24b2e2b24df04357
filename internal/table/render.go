package table

import "github.com/servicestatus/servicestatus/internal/statuspage"

// Column headings.
const (
	ColumnName    = "Name"
	ColumnStatus  = "Status"
	ColumnUpdated = "Updated"
	ColumnSite    = "Site"
)

// RenderStatusTable lists every component of snapshot in its original order.
func RenderStatusTable(snapshot *statuspage.Snapshot) Table {
	t := Table{
		Columns: []string{ColumnName, ColumnStatus, ColumnUpdated},
		Rows:    []Row{},
	}
	if snapshot == nil {
		return t
	}

	t.Rows = make([]Row, 0, len(snapshot.Components))
	for _, c := range snapshot.Components {
		t.Rows = append(t.Rows, Row{
			Text(c.Name),
			Text(c.Status),
			DateTime{ISO: c.UpdatedAt},
		})
	}
	return t
}

// RenderServiceDirectory lists services in the order given, each linking
// to its status site.
func RenderServiceDirectory(services []statuspage.Service) Table {
	t := Table{
		Columns: []string{ColumnName, ColumnSite},
		Rows:    make([]Row, 0, len(services)),
	}

	for _, s := range services {
		t.Rows = append(t.Rows, Row{
			Text(s.Name),
			Link{URL: s.SiteURL(), Label: s.Hostname},
		})
	}
	return t
}
