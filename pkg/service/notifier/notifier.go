package notifier

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/interfaces"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/domain/types"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

var ErrConnectorNotConfigured = goerr.New("connector is not configured for action type")

// Notifier routes an alert to the connector registered for its action type
type Notifier struct {
	connectors map[types.ActionType]interfaces.Connector
}

var _ interfaces.Connector = &Notifier{}

type Option func(*Notifier)

// WithConnector registers c for the action type t
func WithConnector(t types.ActionType, c interfaces.Connector) Option {
	return func(n *Notifier) {
		if c != nil {
			n.connectors[t] = c
		}
	}
}

func New(opts ...Option) *Notifier {
	n := &Notifier{
		connectors: make(map[types.ActionType]interfaces.Connector),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Supports reports whether a connector is registered for t
func (n *Notifier) Supports(t types.ActionType) bool {
	_, ok := n.connectors[t]
	return ok
}

func (n *Notifier) Deliver(ctx context.Context, cfg model.ActionConfig, payload *model.AlertPayload) (bool, error) {
	c, ok := n.connectors[cfg.Type]
	if !ok {
		return false, goerr.Wrap(ErrConnectorNotConfigured, "no connector for action type", goerr.V("type", cfg.Type))
	}

	delivered, err := c.Deliver(ctx, cfg, payload)
	if err != nil {
		return false, goerr.Wrap(err, "failed to deliver alert",
			goerr.V("type", cfg.Type),
			goerr.V("rule_id", payload.RuleID),
		)
	}

	if delivered {
		logging.From(ctx).Info("alert delivered",
			slog.String("type", cfg.Type.String()),
			slog.String("rule_id", string(payload.RuleID)),
			slog.String("memory_id", string(payload.MemoryID)),
		)
	}
	return delivered, nil
}
