package policy

// Status is the usage verdict for a domain at a point in time.
type Status string

const (
	// StatusNormal means the domain is under its limit
	StatusNormal Status = "NORMAL"

	// StatusWarning means usage has reached 80% of the limit
	StatusWarning Status = "WARNING"

	// StatusBlocked means the limit is exhausted (or set to zero)
	StatusBlocked Status = "BLOCKED"
)

// WarningThreshold is the fraction of the limit at which the status
// becomes WARNING.
const WarningThreshold = 0.8
