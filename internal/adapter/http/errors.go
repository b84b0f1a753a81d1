package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// errBadRequest marks requests that could not be decoded at all.
var errBadRequest = errors.New("bad request")

// statusFor maps domain and validation errors to HTTP status codes.
func statusFor(err error) int {
	var (
		validationErrs validator.ValidationErrors
		weatherErr     *domain.WeatherError
		tempErr        *domain.TemperatureError
		rangeErr       *domain.TemperatureRangeError
		reqErr         *domain.CropRequirementError
		cropErr        *domain.CropError
		placeErr       *domain.PlaceError
		obsErr         *domain.WeatherObservationError
		recErr         *domain.RecommendationError
	)
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCropNotFound), errors.Is(err, domain.ErrPlaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPlaceExists):
		return http.StatusConflict
	case errors.As(err, &weatherErr):
		return http.StatusBadGateway
	case errors.As(err, &validationErrs),
		errors.As(err, &tempErr),
		errors.As(err, &rangeErr),
		errors.As(err, &reqErr),
		errors.As(err, &cropErr),
		errors.As(err, &placeErr),
		errors.As(err, &obsErr),
		errors.As(err, &recErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	level := slog.LevelWarn
	msg := err.Error()
	if status == http.StatusInternalServerError {
		level = slog.LevelError
		msg = http.StatusText(status)
	}
	s.logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	writeJSON(w, status, map[string]string{"error": msg})
}
