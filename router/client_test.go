package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kadirpekel/maestro/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouterServer(t *testing.T, routeHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if routeHandler != nil {
		mux.HandleFunc("/route/", routeHandler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRoute_LargeVerdict(t *testing.T) {
	var gotPath string
	var gotReq routeRequest
	server := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		require.NoError(t, json.NewEncoder(w).Encode(routeResponse{
			Prediction: "8b", Probability: 0.92,
		}))
	})

	client := NewClient(config.RouterConfig{BaseURL: server.URL, Timeout: 5}, nil)
	require.False(t, client.Disabled())

	decision := client.Route(context.Background(), config.DomainMedical,
		"assess the symptoms", map[string]string{"patient": "adult"})

	assert.Equal(t, "/route/medical", gotPath)
	assert.Equal(t, "assess the symptoms", gotReq.Task)
	assert.Equal(t, config.ModelSizeLarge, decision.Size)
	assert.Equal(t, 0.92, decision.Probability)
}

func TestRoute_SmallVerdict(t *testing.T) {
	server := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(routeResponse{
			Prediction: "1b", Probability: 0.35,
		}))
	})

	client := NewClient(config.RouterConfig{BaseURL: server.URL, Timeout: 5}, nil)
	decision := client.Route(context.Background(), config.DomainMath, "add two and two", nil)

	assert.Equal(t, config.ModelSizeSmall, decision.Size)
	assert.Equal(t, 0.35, decision.Probability)
}

func TestRoute_ThresholdDemotesLargeVerdict(t *testing.T) {
	server := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(routeResponse{
			Prediction: "8b", Probability: 0.55,
		}))
	})

	client := NewClient(config.RouterConfig{
		BaseURL: server.URL, Timeout: 5, Threshold: 0.7,
	}, nil)
	decision := client.Route(context.Background(), config.DomainLaw, "review the contract", nil)

	assert.Equal(t, config.ModelSizeSmall, decision.Size)
	assert.Equal(t, 0.55, decision.Probability)
}

func TestRoute_ServerErrorFallsBackToSmall(t *testing.T) {
	server := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	client := NewClient(config.RouterConfig{BaseURL: server.URL, Timeout: 5}, nil)
	decision := client.Route(context.Background(), config.DomainCommonsense, "anything", nil)

	assert.Equal(t, config.ModelSizeSmall, decision.Size)
	assert.Equal(t, 0.0, decision.Probability)
}

func TestRoute_UnknownPredictionFallsBackToSmall(t *testing.T) {
	server := newRouterServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(routeResponse{
			Prediction: "70b", Probability: 0.99,
		}))
	})

	client := NewClient(config.RouterConfig{BaseURL: server.URL, Timeout: 5}, nil)
	decision := client.Route(context.Background(), config.DomainCommonsense, "anything", nil)

	assert.Equal(t, config.ModelSizeSmall, decision.Size)
}

func TestNewClient_UnreachableServiceDisablesRouting(t *testing.T) {
	client := NewClient(config.RouterConfig{
		BaseURL: "http://127.0.0.1:1", Timeout: 1,
	}, nil)

	assert.True(t, client.Disabled())

	decision := client.Route(context.Background(), config.DomainMedical, "assess the symptoms", nil)
	assert.Equal(t, config.ModelSizeSmall, decision.Size)
	assert.Equal(t, 0.0, decision.Probability)
}

func TestNewClient_ExplicitlyDisabledSkipsHealthCheck(t *testing.T) {
	// No server at all; an explicitly disabled client must not probe it.
	client := NewClient(config.RouterConfig{
		BaseURL: "http://127.0.0.1:1", Timeout: 1, Disabled: true,
	}, nil)

	assert.True(t, client.Disabled())
}

func TestDetectDomain(t *testing.T) {
	domains := config.Default().Domains

	tests := []struct {
		task string
		want config.Domain
	}{
		{"What is the diagnosis for these symptoms?", config.DomainMedical},
		{"Is this contract clause enforceable?", config.DomainLaw},
		{"Calculate the sum of the first ten integers", config.DomainMath},
		{"Why do people shake hands?", config.DomainCommonsense},
		{"", config.DomainCommonsense},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDomain(tt.task, domains), tt.task)
	}
}
