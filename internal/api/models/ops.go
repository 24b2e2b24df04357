package models

// Health represents the health status of the API process.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus reports the fetch health of every status page host
// contacted since the process started.
type SystemStatus struct {
	Status   HealthStatus `json:"status"`
	Time     Timestamp    `json:"time"`
	Services int          `json:"services"`
	Hosts    []HostStatus `json:"hosts"`
}

// HostStatus is the fetch health of one status page host.
type HostStatus struct {
	Host                string       `json:"host"`
	Status              HealthStatus `json:"status"`
	Breaker             string       `json:"breaker"`
	Requests            uint32       `json:"requests"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	LastError           string       `json:"lastError,omitempty"`
}
