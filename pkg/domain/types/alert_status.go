package types

import "fmt"

// AlertStatus is the outcome recorded for a single dispatch decision
type AlertStatus string

const (
	// AlertStatusFired means the connector delivered the alert
	AlertStatusFired AlertStatus = "fired"
	// AlertStatusSuppressed means the rule was eligible but the gate refused it
	AlertStatusSuppressed AlertStatus = "suppressed"
	// AlertStatusFailed means delivery was attempted and did not succeed
	AlertStatusFailed AlertStatus = "failed"
)

// IsValid checks if the alert status is valid
func (s AlertStatus) IsValid() bool {
	switch s {
	case AlertStatusFired, AlertStatusSuppressed, AlertStatusFailed:
		return true
	default:
		return false
	}
}

func (s AlertStatus) String() string {
	return string(s)
}

// ParseAlertStatus parses a string into an AlertStatus
func ParseAlertStatus(s string) (AlertStatus, error) {
	status := AlertStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid alert status: %s", s)
	}
	return status, nil
}

// SuppressReason explains why the dispatch gate refused a rule
type SuppressReason string

const (
	SuppressNone     SuppressReason = ""
	SuppressInactive SuppressReason = "rule_inactive"
	SuppressCooldown SuppressReason = "cooldown_active"
	SuppressInFlight SuppressReason = "dispatch_in_flight"
	SuppressNotFound SuppressReason = "rule_not_found"
)

func (r SuppressReason) String() string {
	return string(r)
}
