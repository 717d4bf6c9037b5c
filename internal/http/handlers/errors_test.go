package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/yungbote/dbdict-backend/internal/modules/dictionary"
)

func TestToAPIErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "index replace failed",
			err:    &dictionary.Error{Kind: dictionary.ErrRetrieval, Stage: "ingest", DBName: "shop", Err: errors.New("qdrant down")},
			status: http.StatusBadGateway,
			code:   "retrieval_failed",
		},
		{
			name:   "artifact write failed",
			err:    fmt.Errorf("ingest %q: write global context: %w", "shop", os.ErrPermission),
			status: http.StatusInternalServerError,
			code:   "ingest_failed",
		},
		{
			name:   "bad name",
			err:    &dictionary.Error{Kind: dictionary.ErrValidation, Stage: "ingest", DBName: "../x"},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ae := toAPIError(tc.err, "ingest_failed")
			if ae.Status != tc.status || ae.Code != tc.code {
				t.Fatalf("api error: want=%d/%s got=%d/%s", tc.status, tc.code, ae.Status, ae.Code)
			}
		})
	}
}
