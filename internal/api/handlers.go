package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jbellec/marketwatch/internal/alert"
)

// filterRequest is the payload for create and update. Active defaults to
// true on create so a new filter starts polling immediately.
type filterRequest struct {
	Name     string         `json:"name"`
	Criteria alert.Criteria `json:"criteria"`
	Active   *bool          `json:"active,omitempty"`
}

func (req *filterRequest) validate() error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	for _, c := range []alert.StringCriterion{
		req.Criteria.Brand, req.Criteria.Category, req.Criteria.Size,
		req.Criteria.Color, req.Criteria.Condition, req.Criteria.Keywords,
	} {
		if !c.Defined() {
			continue
		}
		switch c.Kind {
		case alert.MatchExact, alert.MatchContains:
		default:
			return errors.New("criterion kind must be \"exact\" or \"contains\"")
		}
	}
	if req.Criteria.MinPrice != nil && *req.Criteria.MinPrice < 0 {
		return errors.New("min_price must not be negative")
	}
	if req.Criteria.MaxPrice != nil && *req.Criteria.MaxPrice < 0 {
		return errors.New("max_price must not be negative")
	}
	if req.Criteria.MinPrice != nil && req.Criteria.MaxPrice != nil &&
		*req.Criteria.MinPrice > *req.Criteria.MaxPrice {
		return errors.New("min_price must not exceed max_price")
	}
	return nil
}

func (s *Server) createFilter(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	if active {
		ok, err := s.quota.CanActivateFilter(r.Context(), uid)
		if err != nil {
			s.logger.Error("activation check failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !ok {
			s.writeError(w, http.StatusForbidden, "active filter limit reached for plan")
			return
		}
	}

	id, err := s.idGen.NewID()
	if err != nil {
		s.logger.Error("generate filter ID failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	now := s.clock.Now()
	f := alert.Filter{
		ID:        id,
		UserID:    uid,
		Name:      req.Name,
		Criteria:  req.Criteria,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if active {
		// Due immediately: the first check happens on the next tick.
		f.NextDue = now
	}
	if err := s.filters.CreateFilter(r.Context(), f); err != nil {
		s.logger.Error("create filter failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusCreated, f)
}

func (s *Server) listFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.filters.ListFilters(r.Context(), userID(r))
	if err != nil {
		s.logger.Error("list filters failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if filters == nil {
		filters = []alert.Filter{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"filters": filters,
		"count":   len(filters),
	})
}

// ownedFilter loads a filter and verifies it belongs to the caller. A
// filter owned by someone else reads as not found.
func (s *Server) ownedFilter(w http.ResponseWriter, r *http.Request) (alert.Filter, bool) {
	id := chi.URLParam(r, "filter_id")
	f, err := s.filters.GetFilter(r.Context(), id)
	if err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "filter not found")
		} else {
			s.logger.Error("get filter failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return alert.Filter{}, false
	}
	if f.UserID != userID(r) {
		s.writeError(w, http.StatusNotFound, "filter not found")
		return alert.Filter{}, false
	}
	return f, true
}

func (s *Server) getFilter(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFilter(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) updateFilter(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFilter(w, r)
	if !ok {
		return
	}
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Active != nil && *req.Active && !f.Active {
		ok, err := s.quota.CanActivateFilter(r.Context(), f.UserID)
		if err != nil {
			s.logger.Error("activation check failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !ok {
			s.writeError(w, http.StatusForbidden, "active filter limit reached for plan")
			return
		}
	}

	now := s.clock.Now()
	f.Name = req.Name
	f.Criteria = req.Criteria
	f.UpdatedAt = now
	if req.Active != nil {
		if *req.Active && !f.Active {
			f.NextDue = now
		}
		f.Active = *req.Active
	}
	if err := s.filters.UpdateFilter(r.Context(), f); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "filter not found")
			return
		}
		s.logger.Error("update filter failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteFilter(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFilter(w, r)
	if !ok {
		return
	}
	if err := s.filters.DeleteFilter(r.Context(), f.ID); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "filter not found")
			return
		}
		s.logger.Error("delete filter failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) activateFilter(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFilter(w, r)
	if !ok {
		return
	}
	if f.Active {
		s.writeJSON(w, http.StatusOK, f)
		return
	}
	allowed, err := s.quota.CanActivateFilter(r.Context(), f.UserID)
	if err != nil {
		s.logger.Error("activation check failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !allowed {
		s.writeError(w, http.StatusForbidden, "active filter limit reached for plan")
		return
	}
	now := s.clock.Now()
	f.Active = true
	f.UpdatedAt = now
	f.NextDue = now
	if err := s.filters.UpdateFilter(r.Context(), f); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "filter not found")
			return
		}
		s.logger.Error("activate filter failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) deactivateFilter(w http.ResponseWriter, r *http.Request) {
	f, ok := s.ownedFilter(w, r)
	if !ok {
		return
	}
	if !f.Active {
		s.writeJSON(w, http.StatusOK, f)
		return
	}
	f.Active = false
	f.UpdatedAt = s.clock.Now()
	if err := s.filters.UpdateFilter(r.Context(), f); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "filter not found")
			return
		}
		s.logger.Error("deactivate filter failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit > 200 {
		limit = 200
	}
	alerts, err := s.alerts.ListAlerts(r.Context(), userID(r), limit, offset)
	if err != nil {
		s.logger.Error("list alerts failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.quota.Usage(r.Context(), userID(r))
	if err != nil {
		s.logger.Error("usage snapshot failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, usage)
}

func (s *Server) streamAlerts(w http.ResponseWriter, r *http.Request) {
	if err := s.live.Serve(w, r, userID(r)); err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
