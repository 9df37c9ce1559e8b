package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/usecase"
)

type rulesResponse struct {
	Rules []*model.SemanticMatchAction `json:"rules"`
}

type alertsResponse struct {
	Alerts []*model.AlertLog `json:"alerts"`
}

type activeRequest struct {
	IsActive bool `json:"is_active"`
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	agentID := model.AgentID(chi.URLParam(r, "agentID"))

	rules, err := s.uc.Rule.ListRules(r.Context(), agentID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rulesResponse{Rules: nonNil(rules)})
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	agentID := model.AgentID(chi.URLParam(r, "agentID"))

	var in usecase.RuleInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}

	rule, err := s.uc.Rule.CreateRule(r.Context(), agentID, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rule)
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	id := model.RuleID(chi.URLParam(r, "ruleID"))

	rule, err := s.uc.Rule.GetRule(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rule)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id := model.RuleID(chi.URLParam(r, "ruleID"))

	var in usecase.RuleInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}

	rule, err := s.uc.Rule.UpdateRule(r.Context(), id, in)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rule)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := model.RuleID(chi.URLParam(r, "ruleID"))

	if err := s.uc.Rule.DeleteRule(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setRuleActive(w http.ResponseWriter, r *http.Request) {
	id := model.RuleID(chi.URLParam(r, "ruleID"))

	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	rule, err := s.uc.Rule.SetRuleActive(r.Context(), id, req.IsActive)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rule)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	id := model.RuleID(chi.URLParam(r, "ruleID"))

	limit, err := queryLimit(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	alerts, err := s.uc.Rule.ListAlerts(r.Context(), id, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alertsResponse{Alerts: nonNil(alerts)})
}
