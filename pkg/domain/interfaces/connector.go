package interfaces

import (
	"context"

	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
)

// Connector delivers an alert through one channel. delivered is false
// whenever err is non-nil.
type Connector interface {
	Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (delivered bool, err error)
}

// ChannelRegistry reports which action types a connector can deliver
type ChannelRegistry interface {
	Supports(t types.ActionType) bool
}
