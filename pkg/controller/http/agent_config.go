package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/magpipe/recurra/pkg/domain/model"
)

func (s *Server) getAgentConfig(w http.ResponseWriter, r *http.Request) {
	agentID := model.AgentID(chi.URLParam(r, "agentID"))

	cfg, err := s.uc.AgentConfig.GetConfig(r.Context(), agentID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cfg)
}

func (s *Server) putAgentConfig(w http.ResponseWriter, r *http.Request) {
	agentID := model.AgentID(chi.URLParam(r, "agentID"))

	var cfg model.AgentConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		handleError(w, r, err)
		return
	}
	cfg.AgentID = agentID

	saved, err := s.uc.AgentConfig.PutConfig(r.Context(), &cfg)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}
