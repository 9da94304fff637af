package domain

// HealthStatus is the outcome of one doctor check.
type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthWarn  HealthStatus = "warn"
	HealthError HealthStatus = "error"
)

// HealthCheck is a single diagnostic, e.g. "Credential cipher" or
// "History store".
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Details string       `json:"details,omitempty"`
}

// HealthReport aggregates checks in the order they ran.
type HealthReport struct {
	Checks []HealthCheck `json:"checks"`
}

// Failures counts checks with HealthError.
func (r HealthReport) Failures() int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == HealthError {
			n++
		}
	}
	return n
}

// Overall is the worst status in the report; an empty report is ok.
func (r HealthReport) Overall() HealthStatus {
	overall := HealthOK
	for _, c := range r.Checks {
		switch c.Status {
		case HealthError:
			return HealthError
		case HealthWarn:
			overall = HealthWarn
		}
	}
	return overall
}
