package statuspage

import "fmt"

// DefaultServiceName is used when a caller does not name a service.
const DefaultServiceName = "Github"

// Service identifies one monitored external service.
type Service struct {
	// Name is the display label, unique within a registry.
	Name string `json:"name"`

	// Hostname is the host serving the status page.
	Hostname string `json:"hostname"`
}

// StatusURL returns the components endpoint of the service's status page.
func (s Service) StatusURL() string {
	return "https://" + s.Hostname + "/api/v2/components.json"
}

// SiteURL returns the human-facing status page address.
func (s Service) SiteURL() string {
	return "https://" + s.Hostname
}

// Registry is an ordered, read-only table of services.
type Registry struct {
	services []Service
	byName   map[string]int
}

// NewRegistry builds a registry from services, keeping their order.
// Duplicate names are rejected.
func NewRegistry(services []Service) (*Registry, error) {
	r := &Registry{
		services: make([]Service, 0, len(services)),
		byName:   make(map[string]int, len(services)),
	}

	for _, s := range services {
		if s.Name == "" || s.Hostname == "" {
			return nil, fmt.Errorf("service %q: name and hostname are required", s.Name)
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("service %q registered twice", s.Name)
		}
		r.byName[s.Name] = len(r.services)
		r.services = append(r.services, s)
	}

	return r, nil
}

// DefaultRegistry returns the registry of built-in services.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinServices())
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve looks a service up by its exact, case-sensitive name.
func (r *Registry) Resolve(name string) (Service, error) {
	i, ok := r.byName[name]
	if !ok {
		return Service{}, &NotFoundError{Name: name}
	}
	return r.services[i], nil
}

// All returns every service in declaration order.
func (r *Registry) All() []Service {
	out := make([]Service, len(r.services))
	copy(out, r.services)
	return out
}

// Names returns every service name in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.services))
	for i, s := range r.services {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	return len(r.services)
}

// BuiltinServices returns the services known to this build.
func BuiltinServices() []Service {
	return []Service{
		{Name: "Akamai", Hostname: "www.akamaistatus.com"},
		{Name: "Bitbucket", Hostname: "bitbucket.status.atlassian.com"},
		{Name: "Cloudflare", Hostname: "www.cloudflarestatus.com"},
		{Name: "Coinbase", Hostname: "status.coinbase.com"},
		{Name: "Digital Ocean", Hostname: "status.digitalocean.com"},
		{Name: "Discord", Hostname: "discordstatus.com"},
		{Name: "Dropbox", Hostname: "status.dropbox.com"},
		{Name: "Github", Hostname: "www.githubstatus.com"},
		{Name: "HashiCorp", Hostname: "status.hashicorp.com"},
		{Name: "Hubspot", Hostname: "status.hubspot.com"},
		{Name: "Linear", Hostname: "linearstatus.com"},
		{Name: "Loom", Hostname: "loom.status.atlassian.com"},
		{Name: "New Relic", Hostname: "status.newrelic.com"},
		{Name: "Npm", Hostname: "status.npmjs.org"},
		{Name: "OpenAI", Hostname: "status.openai.com"},
		{Name: "Reddit", Hostname: "www.redditstatus.com"},
		{Name: "Sendgrid", Hostname: "status.sendgrid.com"},
		{Name: "Snowflake", Hostname: "status.snowflake.com"},
		{Name: "Squarespace", Hostname: "status.squarespace.com"},
		{Name: "Twilio", Hostname: "status.twilio.com"},
		{Name: "Twitch", Hostname: "status.twitch.com"},
		{Name: "Vanta", Hostname: "status.vanta.com"},
		{Name: "Vercel", Hostname: "www.vercel-status.com"},
		{Name: "WorkOS", Hostname: "status.workos.com"},
	}
}
