package handler

import (
	"net/http"

	"github.com/servicestatus/servicestatus/internal/api/models"
	"github.com/servicestatus/servicestatus/internal/api/response"
)

// Tool names advertised to assistants.
const (
	ToolServiceStatus = "service_status"
	ToolListServices  = "list_services"
)

var tools = []models.Tool{
	{
		Name:        ToolServiceStatus,
		Description: "Get the current status of a service's components",
		Method:      http.MethodGet,
		Path:        "/v1/status?service={service}",
		Examples: []string{
			"is github up?",
			"is openai down?",
			"service status for vercel",
		},
	},
	{
		Name:        ToolListServices,
		Description: "List the services whose status can be queried",
		Method:      http.MethodGet,
		Path:        "/v1/services",
		Examples: []string{
			"Show all Services",
			"Show available services",
		},
	},
}

// ToolsHandler lists the operations an assistant can invoke.
type ToolsHandler struct{}

// NewToolsHandler creates a new ToolsHandler.
func NewToolsHandler() *ToolsHandler {
	return &ToolsHandler{}
}

// ListTools handles GET /v1/tools.
func (h *ToolsHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.ToolList{Tools: tools})
}
