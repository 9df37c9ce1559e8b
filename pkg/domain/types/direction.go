package types

import "fmt"

// Direction is the direction of the call that produced a conversation
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

func (d Direction) String() string {
	return string(d)
}

// ParseDirection parses a string into a Direction. An empty string is
// treated as inbound.
func ParseDirection(s string) (Direction, error) {
	if s == "" {
		return DirectionInbound, nil
	}
	d := Direction(s)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid direction: %s", s)
	}
	return d, nil
}
