package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/magpipe/recurra/pkg/domain/model"
	"github.com/magpipe/recurra/pkg/usecase"
)

type memoriesResponse struct {
	Memories []*model.Memory `json:"memories"`
}

type searchResponse struct {
	Results []*model.MemorySearchResult `json:"results"`
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	agentID := model.AgentID(chi.URLParam(r, "agentID"))

	memories, err := s.uc.Memory.ListMemories(r.Context(), agentID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, memoriesResponse{Memories: nonNil(memories)})
}

func (s *Server) deleteAllMemories(w http.ResponseWriter, r *http.Request) {
	agentID := model.AgentID(chi.URLParam(r, "agentID"))

	n, err := s.uc.Memory.DeleteAllMemories(r.Context(), agentID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deletedResponse{Deleted: n})
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	id := model.MemoryID(chi.URLParam(r, "memoryID"))

	mem, err := s.uc.Memory.GetMemory(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, mem)
}

func (s *Server) deleteMemory(w http.ResponseWriter, r *http.Request) {
	id := model.MemoryID(chi.URLParam(r, "memoryID"))

	if err := s.uc.Memory.DeleteMemory(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) similarMemories(w http.ResponseWriter, r *http.Request) {
	id := model.MemoryID(chi.URLParam(r, "memoryID"))

	limit, err := queryLimit(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	results, err := s.uc.Memory.FindSimilarTo(r.Context(), id, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, searchResponse{Results: nonNil(results)})
}

func (s *Server) searchMemories(w http.ResponseWriter, r *http.Request) {
	agentID := model.AgentID(chi.URLParam(r, "agentID"))

	var q usecase.SearchQuery
	if err := decodeJSON(w, r, &q); err != nil {
		handleError(w, r, err)
		return
	}

	results, err := s.uc.Memory.SearchMemories(r.Context(), agentID, q)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, searchResponse{Results: nonNil(results)})
}
