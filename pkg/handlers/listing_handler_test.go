package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/models"
)

func TestListingHandler_SavedHooksReturnAccepted(t *testing.T) {
	finder := &mockMatchFinder{}
	h := NewListingHandler(finder, zap.NewNop())
	agent := uuid.New()
	propertyID, clientWantID := uuid.New(), uuid.New()

	rec := httptest.NewRecorder()
	h.PropertySaved(rec, withPathID(newAgentRequest(t, http.MethodPost, "/", agent, nil), propertyID.String()))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.ClientWantSaved(rec, withPathID(newAgentRequest(t, http.MethodPost, "/", agent, nil), clientWantID.String()))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, []uuid.UUID{propertyID}, finder.savedProps)
	assert.Equal(t, []uuid.UUID{clientWantID}, finder.savedWants)
	assert.Empty(t, finder.findPropCalls, "hooks never run discovery inline")
}

func TestListingHandler_FindForProperty(t *testing.T) {
	propertyID := uuid.New()
	created := []*models.Match{{ID: uuid.New(), Status: models.MatchStatusOpen, IsSuperMatch: true}}
	finder := &mockMatchFinder{created: created}
	h := NewListingHandler(finder, zap.NewNop())

	rec := httptest.NewRecorder()
	h.FindForProperty(rec, withPathID(newAgentRequest(t, http.MethodPost, "/", uuid.New(), nil), propertyID.String()))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DiscoveryResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, created[0].ID, resp.Created[0].ID)
	assert.Equal(t, []uuid.UUID{propertyID}, finder.findPropCalls)
}

func TestListingHandler_FindErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"unknown listing", fmt.Errorf("failed to load client want: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"database failure", fmt.Errorf("failed to list candidate properties: connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewListingHandler(&mockMatchFinder{err: tt.err}, zap.NewNop())
			rec := httptest.NewRecorder()
			h.FindForClientWant(rec, withPathID(newAgentRequest(t, http.MethodPost, "/", uuid.New(), nil), uuid.NewString()))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestListingHandler_BadID(t *testing.T) {
	finder := &mockMatchFinder{}
	h := NewListingHandler(finder, zap.NewNop())

	rec := httptest.NewRecorder()
	h.PropertySaved(rec, withPathID(newAgentRequest(t, http.MethodPost, "/", uuid.New(), nil), "42"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, finder.savedProps)
}
