package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrNotFound is wrapped by every repository backend when a record does not exist
	ErrNotFound = goerr.New("not found")

	ErrInvalidMemory       = goerr.New("invalid memory")
	ErrInvalidRule         = goerr.New("invalid semantic match action")
	ErrInvalidActionConfig = goerr.New("invalid action config")
	ErrInvalidAgentConfig  = goerr.New("invalid agent config")
	ErrDimensionMismatch   = goerr.New("embedding dimension mismatch")

	// ErrStaleEmbedding is returned when a vector is saved for content the
	// memory no longer has
	ErrStaleEmbedding = goerr.New("memory content changed since it was embedded")

	// ErrLeaseLost is returned when completing a dispatch whose lease has
	// expired and been taken over
	ErrLeaseLost = goerr.New("dispatch lease lost")
)
