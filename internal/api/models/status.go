package models

import (
	"github.com/servicestatus/servicestatus/internal/statuspage"
	"github.com/servicestatus/servicestatus/internal/table"
	"github.com/servicestatus/servicestatus/internal/worker"
)

// ServiceStatus is the response of a status query.
type ServiceStatus struct {
	Service string              `json:"service"`
	Page    statuspage.PageInfo `json:"page"`
	Table   table.Table         `json:"table"`
}

// ServiceDirectory is the response of the service listing.
type ServiceDirectory struct {
	Count int         `json:"count"`
	Table table.Table `json:"table"`
}

// SweepRequest optionally limits a sweep to some services.
type SweepRequest struct {
	Services []string `json:"services,omitempty"`
}

// Tool describes one assistant-facing operation and the prompts that
// should trigger it.
type Tool struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	Examples    []string `json:"examples"`
}

// ToolList is the response of the tool listing.
type ToolList struct {
	Tools []Tool `json:"tools"`
}

// SweepReport is the response of an on-demand sweep.
type SweepReport struct {
	*worker.SweepResult
	DurationMs int64 `json:"durationMs"`
}
