package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// MockService is a testify mock of the discovery Service.
type MockService struct {
	mock.Mock
}

func (m *MockService) Discover(ctx context.Context, req types.DiscoverRequest) (*types.DiscoverResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*types.DiscoverResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) EndSession(ctx context.Context, sessionID uuid.UUID) bool {
	args := m.Called(ctx, sessionID)
	return args.Bool(0)
}

func newTestRouter(svc Service) chi.Router {
	h := NewHandlerImpl(svc, discardLogger())
	r := chi.NewRouter()
	r.Post("/discovery/query", h.Query)
	r.Delete("/discovery/sessions/{sessionID}", h.DeleteSession)
	return r
}

func TestQuery_Success(t *testing.T) {
	svc := new(MockService)
	router := newTestRouter(svc)

	sessionID := uuid.New()
	svc.On("Discover", mock.Anything, mock.MatchedBy(func(req types.DiscoverRequest) bool {
		return req.Query == "coffee nearby"
	})).Return(&types.DiscoverResponse{
		SessionID:      sessionID,
		TextualSummary: "Found 1 places.",
		IsFollowUp:     false,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/discovery/query",
		strings.NewReader(`{"query":"coffee nearby"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp types.DiscoverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sessionID, resp.SessionID)
	svc.AssertExpectations(t)
}

func TestQuery_MalformedBody(t *testing.T) {
	svc := new(MockService)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/discovery/query", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Discover", mock.Anything, mock.Anything)
}

func TestQuery_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", types.ErrValidation, http.StatusBadRequest},
		{"circuit open", types.ErrCircuitOpen, http.StatusServiceUnavailable},
		{"timeout", types.ErrTimeout, http.StatusGatewayTimeout},
		{"not connected", types.ErrNotConnected, http.StatusServiceUnavailable},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			router := newTestRouter(svc)
			svc.On("Discover", mock.Anything, mock.Anything).
				Return(nil, fmt.Errorf("turn failed: %w", tt.err)).Once()

			req := httptest.NewRequest(http.MethodPost, "/discovery/query",
				strings.NewReader(`{"query":"coffee"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	svc := new(MockService)
	router := newTestRouter(svc)
	sessionID := uuid.New()
	svc.On("EndSession", mock.Anything, sessionID).Return(true).Once()

	req := httptest.NewRequest(http.MethodDelete, "/discovery/sessions/"+sessionID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteSession_NotFound(t *testing.T) {
	svc := new(MockService)
	router := newTestRouter(svc)
	sessionID := uuid.New()
	svc.On("EndSession", mock.Anything, sessionID).Return(false).Once()

	req := httptest.NewRequest(http.MethodDelete, "/discovery/sessions/"+sessionID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession_InvalidID(t *testing.T) {
	svc := new(MockService)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/discovery/sessions/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "EndSession", mock.Anything, mock.Anything)
}
