package predict

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/predict")
}

func TestPredictSuccess(t *testing.T) {
	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prediction": 3.14159, "status": "success"}`))
	})

	result, err := client.Predict(context.Background(), Request{R: 1, G: 2, B: 3, Brix: 4, Hardness: 5})
	require.NoError(t, err)
	assert.InDelta(t, 3.14159, result.Value, 1e-9)
	assert.Equal(t, "3.14", result.Display())
}

func TestPredictRequestBody(t *testing.T) {
	var (
		gotBody        string
		gotMethod      string
		gotContentType string
	)
	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"prediction": 1}`))
	})

	_, err := client.Predict(context.Background(), Request{R: 120, G: 80, B: 40, Brix: 12.5, Hardness: 7})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, `{"r":120,"g":80,"b":40,"brix":12.5,"hardness":7}`, gotBody)
}

func TestPredictErrorStatus(t *testing.T) {
	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad input"}`))
	})

	_, err := client.Predict(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, "bad input", err.Error())

	var rerr *RequestError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusBadRequest, rerr.StatusCode)
	assert.False(t, rerr.Transport())
}

func TestPredictErrorFallbackMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no error field", `{"status": "failed"}`},
		{"not json", `<html>Internal Server Error</html>`},
		{"empty error", `{"error": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(tt.body))
			})
			_, err := client.Predict(context.Background(), Request{})
			require.Error(t, err)
			assert.Equal(t, FallbackMessage, err.Error())
		})
	}
}

func TestPredictErrorMessageMarkupStripped(t *testing.T) {
	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "<b>Missing</b> required fields: r"}`))
	})

	_, err := client.Predict(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, "Missing required fields: r", err.Error())
}

func TestPredictMalformedSuccessBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `prediction=3`},
		{"missing prediction", `{"status": "success"}`},
		{"string prediction", `{"prediction": "3.1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			_, err := client.Predict(context.Background(), Request{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))

			var rerr *RequestError
			require.True(t, errors.As(err, &rerr))
			assert.True(t, rerr.Transport())
		})
	}
}

func TestPredictUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/predict"
	srv.Close()

	client := NewClient(url)
	_, err := client.Predict(context.Background(), Request{})
	require.Error(t, err)

	var rerr *RequestError
	require.True(t, errors.As(err, &rerr))
	assert.True(t, rerr.Transport())
	assert.NotNil(t, rerr.Unwrap())
}

func TestSetEndpoint(t *testing.T) {
	client := NewClient("")
	assert.Equal(t, DefaultEndpoint, client.Endpoint())

	client.SetEndpoint("http://example.test/v2/predict")
	assert.Equal(t, "http://example.test/v2/predict", client.Endpoint())

	client.SetEndpoint("")
	assert.Equal(t, "http://example.test/v2/predict", client.Endpoint())
}

func TestHealth(t *testing.T) {
	var gotPath string
	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status": "healthy", "model_loaded": true}`))
	})

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/health", gotPath)
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.ModelLoaded)
}

func TestHealthURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"http://localhost:5000/predict", "http://localhost:5000/health"},
		{"https://api.example.com/v1/predict?x=1", "https://api.example.com/v1/health"},
		{"http://localhost:5000", "http://localhost:5000/health"},
	}
	for _, tt := range tests {
		got, err := HealthURL(tt.endpoint)
		require.NoError(t, err, tt.endpoint)
		assert.Equal(t, tt.want, got)
	}

	_, err := HealthURL("not a url")
	assert.Error(t, err)
}

func TestFormatPrediction(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3.14159, "3.14"},
		{2.5, "2.50"},
		{0, "0.00"},
		{-1.236, "-1.24"},
		{42, "42.00"},
		// the binary value sits just below the tie
		{1.005, "1.00"},
		{1.255, "1.25"},
		{2.675, "2.67"},
		{-2.675, "-2.67"},
		// exact ties round away from zero
		{0.125, "0.13"},
		{-0.125, "-0.13"},
		{1e20, "100000000000000000000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrediction(tt.in), "FormatPrediction(%v)", tt.in)
	}
}
