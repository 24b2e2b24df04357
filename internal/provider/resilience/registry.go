package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HealthState is the summarised condition of a host.
type HealthState string

const (
	HealthOK       HealthState = "ok"
	HealthDegraded HealthState = "degraded"
	HealthFailing  HealthState = "failing"
)

// HostHealth is a point-in-time view of one host.
type HostHealth struct {
	Host          string
	Breaker       gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// State is failing while the breaker is open. It is degraded while the
// breaker is half-open or when the latest outcome was a failure.
func (h *HostHealth) State() HealthState {
	switch {
	case h.Breaker == gobreaker.StateOpen:
		return HealthFailing
	case h.Breaker == gobreaker.StateHalfOpen:
		return HealthDegraded
	case h.LastFailureAt != nil && (h.LastSuccessAt == nil || h.LastFailureAt.After(*h.LastSuccessAt)):
		return HealthDegraded
	}
	return HealthOK
}

// Registry owns one Client per host and the outcome history of each.
type Registry struct {
	mu    sync.RWMutex
	hosts map[string]*hostRecord
}

type hostRecord struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{hosts: make(map[string]*hostRecord)}
}

// ClientFor returns the client for host, building it with newClient on
// first use. newClient runs under the registry lock.
func (r *Registry) ClientFor(host string, newClient func() *Client) *Client {
	r.mu.RLock()
	rec, ok := r.hosts[host]
	r.mu.RUnlock()
	if ok {
		return rec.client
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.hosts[host]; ok {
		return rec.client
	}
	rec = &hostRecord{client: newClient()}
	r.hosts[host] = rec
	return rec.client
}

// RecordSuccess notes a successful fetch. Hosts without a client are ignored.
func (r *Registry) RecordSuccess(host string) {
	r.record(host, func(rec *hostRecord, now time.Time) {
		rec.lastSuccessAt = &now
	})
}

// RecordFailure notes a failed fetch. Hosts without a client are ignored.
func (r *Registry) RecordFailure(host string, err error) {
	r.record(host, func(rec *hostRecord, now time.Time) {
		rec.lastFailureAt = &now
		if err != nil {
			rec.lastError = err.Error()
		}
	})
}

func (r *Registry) record(host string, update func(*hostRecord, time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.hosts[host]; ok {
		update(rec, time.Now())
	}
}

// Health returns the view of host, or nil when the host is unknown.
func (r *Registry) Health(host string) *HostHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.hosts[host]
	if !ok {
		return nil
	}
	return rec.view(host)
}

// All returns every host's view ordered by host name.
func (r *Registry) All() []*HostHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*HostHealth, 0, len(r.hosts))
	for host, rec := range r.hosts {
		out = append(out, rec.view(host))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

// Len returns the number of hosts seen so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hosts)
}

func (rec *hostRecord) view(host string) *HostHealth {
	return &HostHealth{
		Host:          host,
		Breaker:       rec.client.State(),
		Counts:        rec.client.Counts(),
		LastSuccessAt: rec.lastSuccessAt,
		LastFailureAt: rec.lastFailureAt,
		LastError:     rec.lastError,
	}
}
