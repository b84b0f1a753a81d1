package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// Advisor evaluates stored crops for a place. It is implemented by
// pipeline.Advisor.
type Advisor interface {
	ForPlace(ctx context.Context, place domain.Place, conf domain.Confidence, cropIDs []uuid.UUID) (domain.BatchResult, error)
	WithWeather(ctx context.Context, w domain.Weather, conf domain.Confidence, cropIDs []uuid.UUID) (domain.BatchResult, error)
}

var validate = validator.New()

const maxBodyBytes = 1 << 20

// updateCropRequest renames a crop and/or replaces its temperature requirement.
type updateCropRequest struct {
	Name        *string             `json:"name" validate:"omitempty,min=1"`
	Temperature *temperatureRequest `json:"temperature" validate:"omitempty"`
}

type temperatureRequest struct {
	AbsoluteLow  *float64     `json:"absolute_low" validate:"required"`
	OptimalLow   *float64     `json:"optimal_low" validate:"required"`
	OptimalHigh  *float64     `json:"optimal_high" validate:"required"`
	AbsoluteHigh *float64     `json:"absolute_high" validate:"required"`
	Scale        domain.Scale `json:"scale"`
}

func (t temperatureRequest) record(name string) domain.CropRecord {
	return domain.CropRecord{
		Name:         name,
		AbsoluteLow:  *t.AbsoluteLow,
		OptimalLow:   *t.OptimalLow,
		OptimalHigh:  *t.OptimalHigh,
		AbsoluteHigh: *t.AbsoluteHigh,
		Scale:        t.Scale,
	}
}

func (t temperatureRequest) requirement() (domain.TemperatureRequirement, error) {
	return t.record("").Requirement()
}

// createCropRequest is a flat crop record in which every bound must be present.
type createCropRequest struct {
	Name string `json:"name" validate:"required"`
	temperatureRequest
}

// recommendationRequest asks for recommendations at a place. Without
// explicit weather the configured weather source is queried.
type recommendationRequest struct {
	Place      *domain.Place     `json:"place"`
	Weather    *domain.Weather   `json:"weather"`
	Confidence domain.Confidence `json:"confidence"`
	CropIDs    []uuid.UUID       `json:"crop_ids"`
}

func (s *Server) handleListCrops(w http.ResponseWriter, r *http.Request) {
	crops, err := s.crops.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if crops == nil {
		crops = []domain.Crop{}
	}
	writeJSON(w, http.StatusOK, crops)
}

func (s *Server) handleCreateCrop(w http.ResponseWriter, r *http.Request) {
	var req createCropRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	crop, err := s.crops.Create(r.Context(), req.record(req.Name))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("crop created", "crop_id", crop.ID().String(), "crop", crop.Name())
	writeJSON(w, http.StatusCreated, crop)
}

func (s *Server) handleGetCrop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	crop, err := s.crops.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, crop)
}

func (s *Server) handleUpdateCrop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req updateCropRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Name == nil && req.Temperature == nil {
		s.writeError(w, r, &domain.CropError{Msg: "name or temperature is required"})
		return
	}

	crop, err := s.crops.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Name != nil {
		if crop, err = crop.Renamed(*req.Name); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.Temperature != nil {
		tr, err := req.Temperature.requirement()
		if err != nil {
			s.writeError(w, r, &domain.CropError{Name: crop.Name(), Msg: "invalid requirement", Err: err})
			return
		}
		if crop, err = crop.WithRequirement(tr); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.crops.Save(r.Context(), crop); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("crop updated", "crop_id", crop.ID().String(), "crop", crop.Name())
	writeJSON(w, http.StatusOK, crop)
}

func (s *Server) handleDeleteCrop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.crops.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("crop deleted", "crop_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		batch domain.BatchResult
		err   error
	)
	switch {
	case req.Weather != nil:
		batch, err = s.advisor.WithWeather(r.Context(), *req.Weather, req.Confidence, req.CropIDs)
	case req.Place != nil:
		batch, err = s.advisor.ForPlace(r.Context(), *req.Place, req.Confidence, req.CropIDs)
	default:
		err = &domain.RecommendationError{Msg: "place or weather is required"}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handlePlaceRecommendations(w http.ResponseWriter, r *http.Request) {
	place, err := placeFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	conf, err := domain.ParseConfidence(r.URL.Query().Get("confidence"))
	if err != nil {
		s.writeError(w, r, &domain.RecommendationError{Msg: err.Error()})
		return
	}
	var ids []uuid.UUID
	for _, raw := range r.URL.Query()["crop"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: crop id %q", errBadRequest, raw))
			return
		}
		ids = append(ids, id)
	}

	batch, err := s.advisor.ForPlace(r.Context(), place, conf, ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// placeUpdateRequest relocates a stored place. Omitted or null coordinates
// clear them.
type placeUpdateRequest struct {
	Coordinates *domain.Coordinates `json:"coordinates"`
}

type placeResponse struct {
	Key         string              `json:"key"`
	PostalCode  string              `json:"postal_code"`
	Country     string              `json:"country"`
	Coordinates *domain.Coordinates `json:"coordinates,omitempty"`
}

func newPlaceResponse(p domain.Place) placeResponse {
	return placeResponse{Key: p.Key(), PostalCode: p.PostalCode, Country: p.Country, Coordinates: p.Coordinates}
}

func (s *Server) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := s.places.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]placeResponse, 0, len(places))
	for _, p := range places {
		out = append(out, newPlaceResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePlace(w http.ResponseWriter, r *http.Request) {
	var place domain.Place
	if err := decodeBody(w, r, &place); err != nil {
		s.writeError(w, r, err)
		return
	}
	if place.IsZero() {
		s.writeError(w, r, fmt.Errorf("%w: place body is required", errBadRequest))
		return
	}
	if err := s.places.Create(r.Context(), place); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("place created", "place", place.Key(), "located", place.Located())
	writeJSON(w, http.StatusCreated, newPlaceResponse(place))
}

func (s *Server) handleGetPlace(w http.ResponseWriter, r *http.Request) {
	key, err := pathPlaceKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	place, err := s.places.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlaceResponse(place))
}

func (s *Server) handleUpdatePlace(w http.ResponseWriter, r *http.Request) {
	key, err := pathPlaceKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req placeUpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	place, err := s.places.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	place.Coordinates = nil
	if req.Coordinates != nil {
		if place, err = place.WithCoordinates(*req.Coordinates); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.places.Save(r.Context(), place); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("place updated", "place", place.Key(), "located", place.Located())
	writeJSON(w, http.StatusOK, newPlaceResponse(place))
}

func (s *Server) handleDeletePlace(w http.ResponseWriter, r *http.Request) {
	key, err := pathPlaceKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.places.Delete(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("place deleted", "place", key)
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads a JSON body into v and validates it. Domain types that
// validate while decoding surface their own errors.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return validate.Struct(v)
}

func isDomainError(err error) bool {
	status := statusFor(err)
	return status == http.StatusUnprocessableEntity
}

// placeFromRequest reads the place from the path. Optional lat and lon
// query parameters locate it without geocoding.
func placeFromRequest(r *http.Request) (domain.Place, error) {
	place, err := domain.NewPlace(r.PathValue("postal"), r.PathValue("country"))
	if err != nil {
		return domain.Place{}, err
	}
	q := r.URL.Query()
	if !q.Has("lat") && !q.Has("lon") {
		return place, nil
	}
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		return domain.Place{}, fmt.Errorf("%w: lat and lon must both be numbers", errBadRequest)
	}
	return place.WithCoordinates(domain.Coordinates{Lat: lat, Lon: lon})
}

// pathPlaceKey normalizes the country and postal path values into a place key.
func pathPlaceKey(r *http.Request) (string, error) {
	place, err := domain.NewPlace(r.PathValue("postal"), r.PathValue("country"))
	if err != nil {
		return "", err
	}
	return place.Key(), nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: crop id %q", errBadRequest, raw)
	}
	return id, nil
}
