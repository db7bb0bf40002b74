package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/province"
	"github.com/couchcryptid/quake-feed-service/internal/retrieval"
	"github.com/couchcryptid/quake-feed-service/internal/settings"
)

const (
	// DefaultNearbyRadiusKm is used when /earthquakes/nearby has no radius_km.
	DefaultNearbyRadiusKm = 250.0

	maxBodyBytes = 1 << 16
)

// Retriever is the retrieval surface the API serves.
type Retriever interface {
	Fetch(ctx context.Context, hoursWindow int, ranges []domain.MagnitudeRange) ([]domain.Earthquake, error)
	FetchAroundPoint(ctx context.Context, hoursWindow int, center domain.Point, radiusKm float64, ranges []domain.MagnitudeRange) ([]domain.Earthquake, error)
}

// API serves the /api/v1 routes.
type API struct {
	retriever Retriever
	session   *retrieval.Session
	settings  settings.Store
	provinces *province.Catalog
	logger    *slog.Logger
}

func NewAPI(r Retriever, session *retrieval.Session, store settings.Store, provinces *province.Catalog, logger *slog.Logger) *API {
	return &API{
		retriever: r,
		session:   session,
		settings:  store,
		provinces: provinces,
		logger:    logger,
	}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/earthquakes", a.handleEarthquakes)
	mux.HandleFunc("GET /api/v1/earthquakes/nearby", a.handleNearby)

	mux.HandleFunc("GET /api/v1/selection", a.handleGetSelection)
	mux.HandleFunc("PUT /api/v1/selection", a.handlePutSelection)
	mux.HandleFunc("POST /api/v1/selection/clear", a.handleClearSelection)
	mux.HandleFunc("POST /api/v1/selection/time/{index}", a.handleSelectTime)
	mux.HandleFunc("POST /api/v1/selection/magnitudes/{index}/toggle", a.handleToggleMagnitude)
	mux.HandleFunc("GET /api/v1/selection/results", a.handleSelectionResults)

	mux.HandleFunc("GET /api/v1/settings", a.handleGetSettings)
	mux.HandleFunc("PUT /api/v1/settings", a.handlePutSettings)

	mux.HandleFunc("GET /api/v1/provinces", a.handleProvinces)
}

type earthquakesResponse struct {
	WindowHours int                 `json:"window_hours"`
	TimeLabel   string              `json:"time_label"`
	Count       int                 `json:"count"`
	Earthquakes []domain.Earthquake `json:"earthquakes"`
}

type nearbyResponse struct {
	earthquakesResponse
	Province string       `json:"province,omitempty"`
	Center   domain.Point `json:"center"`
	RadiusKm float64      `json:"radius_km"`
}

func (a *API) handleEarthquakes(w http.ResponseWriter, r *http.Request) {
	sel, hours, ranges, ok := parseSelection(w, r)
	if !ok {
		return
	}

	events, err := a.retriever.Fetch(r.Context(), hours, ranges)
	if err != nil {
		a.writeRetrievalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEarthquakesResponse(sel, hours, events))
}

func (a *API) handleNearby(w http.ResponseWriter, r *http.Request) {
	sel, hours, ranges, ok := parseSelection(w, r)
	if !ok {
		return
	}

	radius := DefaultNearbyRadiusKm
	if v := r.URL.Query().Get("radius_km"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
		radius = f
	}

	center, provinceName, status, err := a.resolveCenter(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	events, err := a.retriever.FetchAroundPoint(r.Context(), hours, center, radius, ranges)
	if err != nil {
		a.writeRetrievalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nearbyResponse{
		earthquakesResponse: newEarthquakesResponse(sel, hours, events),
		Province:            provinceName,
		Center:              center,
		RadiusKm:            radius,
	})
}

// resolveCenter picks the search centre from lat/lon, a province name, or the
// stored settings province, in that order.
func (a *API) resolveCenter(r *http.Request) (domain.Point, string, int, error) {
	q := r.URL.Query()

	if q.Has("lat") || q.Has("lon") {
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return domain.Point{}, "", http.StatusBadRequest, errors.New("lat and lon must both be valid coordinates")
		}
		return domain.Point{Lat: lat, Lon: lon}, "", 0, nil
	}

	name := q.Get("province")
	if name == "" {
		s, err := a.settings.Get(r.Context())
		if err != nil {
			a.logger.Error("load settings failed", "error", err)
			return domain.Point{}, "", http.StatusInternalServerError, errors.New("could not load settings")
		}
		name = s.Province
	}

	p, err := a.provinces.Lookup(name)
	if err != nil {
		return domain.Point{}, "", http.StatusNotFound, fmt.Errorf("unknown province %q", name)
	}
	return p.Point(), p.Name, 0, nil
}

func (a *API) handleGetSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.session.Snapshot())
}

func (a *API) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var sel domain.Selection
	if !decodeBody(w, r, &sel) {
		return
	}
	st, err := a.session.Refresh(sel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (a *API) handleClearSelection(w http.ResponseWriter, _ *http.Request) {
	a.updateSelection(w, domain.Selection.ClearMagnitudes)
}

func (a *API) handleSelectTime(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	a.updateSelection(w, func(s domain.Selection) domain.Selection { return s.SelectTime(i) })
}

func (a *API) handleToggleMagnitude(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	a.updateSelection(w, func(s domain.Selection) domain.Selection { return s.ToggleMagnitude(i) })
}

func (a *API) updateSelection(w http.ResponseWriter, fn func(domain.Selection) domain.Selection) {
	st, err := a.session.Update(fn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (a *API) handleSelectionResults(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusOK, a.session.Snapshot())
		return
	}
	st, err := a.session.Wait(r.Context())
	if err != nil {
		// Client went away.
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := a.settings.Get(r.Context())
	if err != nil {
		a.logger.Error("load settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// handlePutSettings merges the body over the stored settings: fields the body
// omits keep their current values.
func (a *API) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	s, err := a.settings.Get(r.Context())
	if err != nil {
		a.logger.Error("load settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load settings")
		return
	}
	if !decodeBody(w, r, &s) {
		return
	}
	if strings.TrimSpace(s.Province) != "" {
		p, err := a.provinces.Lookup(s.Province)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown province %q", s.Province))
			return
		}
		s.Province = p.Name
	}

	saved, err := a.settings.Put(r.Context(), s)
	if err != nil {
		a.logger.Error("save settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not save settings")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) handleProvinces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.provinces.All())
}

// writeRetrievalError maps retrieval errors to a status and a short message.
// Nothing is written when the client canceled the request.
func (a *API) writeRetrievalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case r.Context().Err() != nil:
		a.logger.Debug("request canceled", "path", r.URL.Path)
	case errors.Is(err, retrieval.ErrFeedUnavailable):
		writeError(w, http.StatusBadGateway, "earthquake feed is unavailable, try again later")
	case errors.Is(err, retrieval.ErrInvalidWindow), errors.Is(err, retrieval.ErrInvalidRadius):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("retrieval failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load earthquakes")
	}
}

// parseSelection reads window=<index> and mag=<i,j,...> from the query
// string and writes a 400 when they are invalid.
func parseSelection(w http.ResponseWriter, r *http.Request) (domain.Selection, int, []domain.MagnitudeRange, bool) {
	q := r.URL.Query()
	var sel domain.Selection

	if v := q.Get("window"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "window must be an index 0-3")
			return sel, 0, nil, false
		}
		sel.TimeIndex = i
	}

	if v := q.Get("mag"); v != "" {
		for _, part := range strings.Split(v, ",") {
			i, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				writeError(w, http.StatusBadRequest, "mag must be a comma-separated list of indices 0-3")
				return sel, 0, nil, false
			}
			sel.Magnitudes = append(sel.Magnitudes, i)
		}
	}

	hours, ranges, err := sel.Query()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return sel, 0, nil, false
	}
	return sel, hours, ranges, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func newEarthquakesResponse(sel domain.Selection, hours int, events []domain.Earthquake) earthquakesResponse {
	if events == nil {
		events = []domain.Earthquake{}
	}
	return earthquakesResponse{
		WindowHours: hours,
		TimeLabel:   sel.TimeLabel(),
		Count:       len(events),
		Earthquakes: events,
	}
}
