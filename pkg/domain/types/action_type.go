package types

import "fmt"

// ActionType identifies the delivery channel of a semantic match action
type ActionType string

const (
	ActionTypeSMS     ActionType = "sms"
	ActionTypeEmail   ActionType = "email"
	ActionTypeSlack   ActionType = "slack"
	ActionTypeHubSpot ActionType = "hubspot"
	ActionTypeWebhook ActionType = "webhook"
)

// AllActionTypes returns all valid action types
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionTypeSMS,
		ActionTypeEmail,
		ActionTypeSlack,
		ActionTypeHubSpot,
		ActionTypeWebhook,
	}
}

// IsValid checks if the action type is valid
func (t ActionType) IsValid() bool {
	switch t {
	case ActionTypeSMS,
		ActionTypeEmail,
		ActionTypeSlack,
		ActionTypeHubSpot,
		ActionTypeWebhook:
		return true
	default:
		return false
	}
}

func (t ActionType) String() string {
	return string(t)
}

// ParseActionType parses a string into an ActionType
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid action type: %s", s)
	}
	return t, nil
}
