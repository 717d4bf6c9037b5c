package handlers

import (
	"errors"
	"net/http"

	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/modules/dictionary"
	"github.com/yungbote/dbdict-backend/internal/platform/apierr"
)

// toAPIError maps the dictionary error kinds onto HTTP statuses.
func toAPIError(err error, fallbackCode string) *apierr.Error {
	if ae, ok := apierr.As(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, dictionary.ErrValidation), errors.Is(err, artifacts.ErrInvalidName):
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, dictionary.ErrNotFound), errors.Is(err, artifacts.ErrNotFound), errors.Is(err, introspect.ErrUnknownConnection):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, dictionary.ErrGeneration), errors.Is(err, dictionary.ErrClassification):
		return apierr.New(http.StatusBadGateway, "generation_failed", err)
	case errors.Is(err, dictionary.ErrRetrieval):
		return apierr.New(http.StatusBadGateway, "retrieval_failed", err)
	}
	return apierr.New(http.StatusInternalServerError, fallbackCode, err)
}
