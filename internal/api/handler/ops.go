// Package handler provides HTTP handlers for the service status API.
package handler

import (
	"net/http"
	"time"

	"github.com/servicestatus/servicestatus/internal/api/models"
	"github.com/servicestatus/servicestatus/internal/api/response"
	"github.com/servicestatus/servicestatus/internal/provider/resilience"
	"github.com/servicestatus/servicestatus/internal/statuspage"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version        string
	buildTime      string
	registry       *statuspage.Registry
	health         *resilience.Registry
	defaultService string
}

// OpsHandlerConfig holds dependencies for the OpsHandler.
type OpsHandlerConfig struct {
	Version        string
	BuildTime      string
	Registry       *statuspage.Registry
	Health         *resilience.Registry
	DefaultService string
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	health := cfg.Health
	if health == nil {
		health = resilience.NewRegistry()
	}
	return &OpsHandler{
		version:        cfg.Version,
		buildTime:      cfg.BuildTime,
		registry:       cfg.Registry,
		health:         health,
		defaultService: cfg.DefaultService,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The API is
// ready once it has services to serve and its default service resolves.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil || h.registry.Len() == 0 {
		response.Problem(w, r, models.KindUnavailable, "no services registered")
		return
	}
	if _, err := h.registry.Resolve(h.defaultService); err != nil {
		response.Problem(w, r, models.KindUnavailable, statuspage.UserMessage(err))
		return
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"services":       h.registry.Len(),
			"defaultService": h.defaultService,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - fetch health per status page host.
// A failing host degrades the report; it never fails it.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	hosts := h.health.All()

	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Hosts:  make([]models.HostStatus, 0, len(hosts)),
	}
	if h.registry != nil {
		status.Services = h.registry.Len()
	}

	for _, hh := range hosts {
		hs := models.HostStatus{
			Host:                hh.Host,
			Status:              hostHealthStatus[hh.State()],
			Breaker:             hh.Breaker.String(),
			Requests:            hh.Counts.Requests,
			ConsecutiveFailures: hh.Counts.ConsecutiveFailures,
			LastSuccessAt:       models.TimestampPtr(hh.LastSuccessAt),
			LastFailureAt:       models.TimestampPtr(hh.LastFailureAt),
			LastError:           hh.LastError,
		}
		if hs.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
		status.Hosts = append(status.Hosts, hs)
	}

	response.JSON(w, r, http.StatusOK, status)
}

var hostHealthStatus = map[resilience.HealthState]models.HealthStatus{
	resilience.HealthOK:       models.HealthStatusOK,
	resilience.HealthDegraded: models.HealthStatusDegraded,
	resilience.HealthFailing:  models.HealthStatusFail,
}
