package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/servicestatus/servicestatus/internal/api/models"
	"github.com/servicestatus/servicestatus/internal/api/response"
	"github.com/servicestatus/servicestatus/internal/statuspage"
	"github.com/servicestatus/servicestatus/internal/worker"
)

// maxSweepBody bounds the sweep request body.
const maxSweepBody = 64 << 10

// Sweeper runs diagnostic sweeps.
type Sweeper interface {
	Run(ctx context.Context) *worker.SweepResult
	RunServices(ctx context.Context, services []statuspage.Service) *worker.SweepResult
}

// SweepHandler handles on-demand sweeps.
type SweepHandler struct {
	sweeper  Sweeper
	registry *statuspage.Registry
	budget   time.Duration
}

// NewSweepHandler creates a new SweepHandler. A positive budget bounds a
// whole sweep; services still pending when it runs out are reported as
// failed requests. It must stay below the server's write timeout.
func NewSweepHandler(sweeper Sweeper, registry *statuspage.Registry, budget time.Duration) *SweepHandler {
	return &SweepHandler{
		sweeper:  sweeper,
		registry: registry,
		budget:   budget,
	}
}

// RunSweep handles POST /v1/ops/sweep. An empty body sweeps every
// registered service; {"services": [...]} limits the sweep.
func (h *SweepHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		response.Problem(w, r, models.KindUnavailable, "sweeps are not enabled")
		return
	}

	var input models.SweepRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSweepBody)).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.Invalid(w, r, "invalid JSON body", nil)
		return
	}

	var services []statuspage.Service
	if len(input.Services) > 0 {
		var fieldErrors []models.FieldError
		services, fieldErrors = h.resolve(input.Services)
		if len(fieldErrors) > 0 {
			response.Invalid(w, r, "unknown services in request", fieldErrors)
			return
		}
	}

	ctx := r.Context()
	if h.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.budget)
		defer cancel()
	}

	var result *worker.SweepResult
	if services == nil {
		result = h.sweeper.Run(ctx)
	} else {
		result = h.sweeper.RunServices(ctx, services)
	}

	response.JSON(w, r, http.StatusOK, models.SweepReport{
		SweepResult: result,
		DurationMs:  result.Duration.Milliseconds(),
	})
}

func (h *SweepHandler) resolve(names []string) ([]statuspage.Service, []models.FieldError) {
	services := make([]statuspage.Service, 0, len(names))
	var fieldErrors []models.FieldError
	for _, name := range names {
		svc, err := h.registry.Resolve(name)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   "services",
				Message: statuspage.UserMessage(err),
				Code:    "UNKNOWN_SERVICE",
			})
			continue
		}
		services = append(services, svc)
	}
	return services, fieldErrors
}
