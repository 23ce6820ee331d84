package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kartoza/antiox-predictor/internal/config"
	"github.com/kartoza/antiox-predictor/internal/predict"
)

// newTestServer wires a Server to a fake prediction service
func newTestServer(t *testing.T, handler http.HandlerFunc) (*Server, *int32) {
	t.Helper()

	var calls int32
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(svc.Close)

	cfg := config.Config{
		Port:    8080,
		DataDir: t.TempDir(),
		History: true,
		Version: "test",
	}
	client := predict.NewClient(svc.URL + "/predict")

	s, err := New(cfg, client, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s, &calls
}

func predictionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{"prediction": 3.14159})
}

func postForm(s *Server, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func formValues(r, g, b string) url.Values {
	return url.Values{
		"r":        {r},
		"g":        {g},
		"b":        {b},
		"brix":     {"12.5"},
		"hardness": {"7"},
	}
}

func TestFormPageDefaults(t *testing.T) {
	s, _ := newTestServer(t, predictionHandler)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "RGB(200, 150, 100)") {
		t.Errorf("Expected default swatch label in page")
	}
	if !strings.Contains(body, "#c89664") {
		t.Errorf("Expected default swatch colour in page")
	}
	if strings.Contains(body, `id="result"`) {
		t.Errorf("Expected no results panel before a prediction")
	}
}

func TestFormPageLiveSwatch(t *testing.T) {
	s, _ := newTestServer(t, predictionHandler)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if !strings.Contains(w.Body.String(), `src="/static/preview.js"`) {
		t.Errorf("Expected page to load the live preview script")
	}

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/static/preview.js", nil))
	script := w.Body.String()
	for _, want := range []string{"/api/preview", "addEventListener('input'", "colorPreview"} {
		if !strings.Contains(script, want) {
			t.Errorf("Expected preview script to contain %q", want)
		}
	}

	// the endpoint the script calls answers with the swatch
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/preview?r=1&g=2&b=3", nil))
	if !strings.Contains(w.Body.String(), `"css":"rgb(1, 2, 3)"`) {
		t.Errorf("Unexpected preview response %s", w.Body.String())
	}
}

func TestFormSubmitShowsPrediction(t *testing.T) {
	s, calls := newTestServer(t, predictionHandler)

	w := postForm(s, formValues("120", "80", "40"))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `id="result"`) {
		t.Errorf("Expected results panel to be shown")
	}
	if !strings.Contains(body, "3.14") {
		t.Errorf("Expected prediction 3.14 in page")
	}
	if !strings.Contains(body, "12.5 °Bx") {
		t.Errorf("Expected brix echoed with unit")
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("Expected 1 prediction call, got %d", got)
	}
}

func TestFormSubmitPrefillsNextPage(t *testing.T) {
	s, _ := newTestServer(t, predictionHandler)

	postForm(s, formValues("120", "80", "40"))

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	body := w.Body.String()

	if !strings.Contains(body, "RGB(120, 80, 40)") {
		t.Errorf("Expected last inputs to be prefilled")
	}
	if !strings.Contains(body, "Recent predictions") {
		t.Errorf("Expected recent predictions to be listed")
	}
}

func TestFormSubmitInvalidChannels(t *testing.T) {
	s, calls := newTestServer(t, predictionHandler)

	w := postForm(s, formValues("300", "80", "40"))

	body := w.Body.String()
	if !strings.Contains(body, "RGB values must be between 0 and 255") {
		t.Errorf("Expected channel validation message")
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Errorf("Expected no prediction call, got %d", got)
	}
}

func TestFormSubmitServiceError(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad input"}`))
	})

	w := postForm(s, formValues("120", "80", "40"))

	body := w.Body.String()
	if !strings.Contains(body, "Prediction failed: bad input") {
		t.Errorf("Expected service error notification, got %s", body)
	}
	if strings.Contains(body, `id="result"`) {
		t.Errorf("Expected no results panel after an error")
	}
}

func TestFormPreviewAction(t *testing.T) {
	s, calls := newTestServer(t, predictionHandler)

	values := formValues("10", "20", "")
	values.Set("action", "preview")
	w := postForm(s, values)

	if !strings.Contains(w.Body.String(), "RGB(10, 20, 0)") {
		t.Errorf("Expected previewed swatch in page")
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Errorf("Expected no prediction call for preview, got %d", got)
	}
}

func TestAPIAndStaticMounted(t *testing.T) {
	s, _ := newTestServer(t, predictionHandler)

	tests := []struct {
		path string
		want int
	}{
		{"/api/health", http.StatusOK},
		{"/static/style.css", http.StatusOK},
		{"/static/preview.js", http.StatusOK},
		{"/static/missing.css", http.StatusNotFound},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("GET %s: expected status %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}
