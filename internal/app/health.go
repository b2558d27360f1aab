package app

// Service state values reported by Health.
const (
	StateConfigured = "configured"
	StateMissingKey = "missing_key"
	StateLocal      = "local"
)

// Service describes one wired capability.
type Service struct {
	Backend string `json:"backend"`
	State   string `json:"state"`
}

// Health is the process health summary.
type Health struct {
	Status   string             `json:"status"`
	Profile  string             `json:"profile,omitempty"`
	Services map[string]Service `json:"services"`
}

func (h *Health) set(name, backend string, configured bool) {
	state := StateMissingKey
	if configured {
		state = StateConfigured
	}
	h.Services[name] = Service{Backend: backend, State: state}
}

func (h *Health) setLocal(name, backend string) {
	h.Services[name] = Service{Backend: backend, State: StateLocal}
}
