package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/usecase"
	"github.com/magpipe/recurra/pkg/utils/async"
	"github.com/magpipe/recurra/pkg/utils/logging"
)

type conversationAccepted struct {
	MemoryID model.MemoryID `json:"memory_id"`
}

// postConversation accepts a completed conversation and runs the matching
// pipeline after responding, so the call pipeline is never blocked on
// embedding or delivery latency.
func (s *Server) postConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := model.AgentID(chi.URLParam(r, "agentID"))

	var ev usecase.ConversationEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		handleError(w, r, err)
		return
	}
	if ev.AgentID != "" && ev.AgentID != agentID {
		handleError(w, r, goerr.Wrap(errBadRequest, "agent_id does not match path",
			goerr.V("path", agentID), goerr.V("body", ev.AgentID)))
		return
	}
	ev.AgentID = agentID
	if err := ev.Validate(); err != nil {
		handleError(w, r, err)
		return
	}

	async.Dispatch(ctx, func(ctx context.Context) error {
		result, err := s.uc.Conversation.OnConversationComplete(ctx, ev)
		if err != nil {
			return goerr.Wrap(err, "failed to process conversation",
				goerr.V(usecase.AgentIDKey, ev.AgentID),
				goerr.V("contact_id", ev.ContactID))
		}

		logging.From(ctx).Info("conversation processed",
			"memory_id", result.Memory.ID,
			"candidates", len(result.Candidates),
			"dispatches", len(result.Dispatches),
		)
		return nil
	})

	writeJSON(w, r, http.StatusAccepted, conversationAccepted{
		MemoryID: model.NewMemoryID(ev.AgentID, ev.ContactID),
	})
}
