package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"salon-discovery/internal/discovery"
	"salon-discovery/internal/domain"
)

type apiHandler struct {
	registry  *discovery.Registry
	directory domain.Directory
	logger    *slog.Logger
}

func (h *apiHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}

	if (req.Latitude == nil) != (req.Longitude == nil) {
		writeError(w, http.StatusBadRequest, "latitude and longitude must be provided together")
		return
	}

	var at *domain.Coordinate
	if req.Latitude != nil {
		c := domain.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if !c.Valid() {
			writeError(w, http.StatusBadRequest, "coordinates out of range")
			return
		}
		at = &c
	}

	s := h.registry.Create(clientIP(r), at)
	writeJSON(w, http.StatusCreated, toSessionResponse(s.Snapshot()))
}

func (h *apiHandler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s.Snapshot()))
}

func (h *apiHandler) updateSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req updateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if req.SortKey != nil {
		key, valid := domain.ParseSortKey(*req.SortKey)
		if !valid {
			writeError(w, http.StatusBadRequest, "sort_key must be one of distance, name, rating")
			return
		}
		s.SetSortKey(key)
	}
	if req.Query != nil {
		s.SetQuery(*req.Query)
	}

	writeJSON(w, http.StatusOK, toSessionResponse(s.Snapshot()))
}

func (h *apiHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) filterByCity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req cityRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}

	s.FilterByCity(strings.TrimSpace(req.City), strings.TrimSpace(req.Country))

	// The city load runs in the background; the snapshot reflects it once
	// the next poll sees the bumped generation.
	writeJSON(w, http.StatusAccepted, toSessionResponse(s.Snapshot()))
}

func (h *apiHandler) reloadSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	s.Reload()
	writeJSON(w, http.StatusAccepted, toSessionResponse(s.Snapshot()))
}

func (h *apiHandler) selectSalon(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.SalonID <= 0 {
		writeError(w, http.StatusBadRequest, "salon_id is required")
		return
	}

	route := s.Select(r.Context(), req.SalonID)
	writeJSON(w, http.StatusOK, selectionResponse{
		Route:   route.Kind,
		SalonID: route.SalonID,
		StyleID: route.StyleID,
	})
}

func (h *apiHandler) getSalon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid salon id")
		return
	}

	salon, err := h.directory.GetSalon(r.Context(), id)
	if err != nil {
		var remote *domain.RemoteError
		if errors.As(err, &remote) && remote.StatusCode == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "salon not found")
			return
		}
		h.logger.Warn("salon detail fetch failed", "salon_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "directory unavailable")
		return
	}

	writeJSON(w, http.StatusOK, salonDetailResponse{Salon: salon})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// clientIP prefers the first X-Forwarded-For hop so the position lookup
// sees the caller, not the proxy in front of this service.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Request and response payloads.

type createSessionRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type updateSessionRequest struct {
	Query   *string `json:"query"`
	SortKey *string `json:"sort_key"`
}

type cityRequest struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

type selectionRequest struct {
	SalonID int `json:"salon_id"`
}

type selectionResponse struct {
	Route   domain.RouteKind `json:"route"`
	SalonID int              `json:"salon_id"`
	StyleID string           `json:"style_id,omitempty"`
}

type locationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
}

type sessionResponse struct {
	SessionID   string                `json:"session_id"`
	Generation  uint64                `json:"generation"`
	Salons      []domain.Salon        `json:"salons"`
	TotalCount  int                   `json:"total_count"`
	Query       string                `json:"query"`
	SortKey     domain.SortKey        `json:"sort_key"`
	Source      discovery.Source      `json:"source"`
	LoadPhase   discovery.LoadPhase   `json:"load_phase"`
	LocatePhase discovery.LocatePhase `json:"locate_phase"`
	Location    *locationResponse     `json:"location,omitempty"`
	City        string                `json:"city,omitempty"`
	LastError   domain.ErrorKind      `json:"last_error,omitempty"`
}

type salonDetailResponse struct {
	Salon domain.Salon `json:"salon"`
}

func toSessionResponse(snap discovery.Snapshot) sessionResponse {
	resp := sessionResponse{
		SessionID:   snap.SessionID,
		Generation:  snap.Generation,
		Salons:      snap.Salons,
		TotalCount:  snap.Total,
		Query:       snap.Query,
		SortKey:     snap.SortKey,
		Source:      snap.Source,
		LoadPhase:   snap.LoadPhase,
		LocatePhase: snap.LocatePhase,
		City:        snap.City,
		LastError:   snap.LastError,
	}
	if snap.Location != nil {
		resp.Location = &locationResponse{
			Latitude:  snap.Location.Coordinate.Latitude,
			Longitude: snap.Location.Coordinate.Longitude,
			City:      snap.Location.City,
			Country:   snap.Location.Country,
		}
	}
	return resp
}
