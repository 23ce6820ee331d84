// Package predict holds the prediction data model and the HTTP client used to
// reach the prediction service.
package predict

import (
	"math"
	"strconv"
	"strings"

	"github.com/kartoza/antiox-predictor/internal/models"
)

// Channel bounds for the colour inputs
const (
	ChannelMin = 0
	ChannelMax = 255
)

// Request is a single prediction request. It is built fresh for every
// submission and never stored.
type Request struct {
	R        float64
	G        float64
	B        float64
	Brix     float64
	Hardness float64
}

// Inputs holds the raw text of the five form fields
type Inputs struct {
	R        string `yaml:"r"`
	G        string `yaml:"g"`
	B        string `yaml:"b"`
	Brix     string `yaml:"brix"`
	Hardness string `yaml:"hardness"`
}

// ParseInputs converts raw field text into a Request. It does not range-check;
// call Validate on the result.
func ParseInputs(in Inputs) (Request, error) {
	var req Request
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"r", in.R, &req.R},
		{"g", in.G, &req.G},
		{"b", in.B, &req.B},
		{"brix", in.Brix, &req.Brix},
		{"hardness", in.Hardness, &req.Hardness},
	}

	for _, f := range fields {
		v, ok := ParseNumber(f.raw)
		if !ok {
			return Request{}, &ValidationError{Field: f.name, Message: f.name + " must be a number"}
		}
		*f.dst = v
	}
	return req, nil
}

// ParseNumber parses a finite decimal number, ignoring surrounding whitespace
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ValidateChannels fails when any colour channel is outside [0,255]
func ValidateChannels(r, g, b float64) error {
	for _, v := range []float64{r, g, b} {
		if math.IsNaN(v) || v < ChannelMin || v > ChannelMax {
			return &ValidationError{Field: "rgb", Message: "RGB values must be between 0 and 255"}
		}
	}
	return nil
}

// Validate checks every field of the request
func (r Request) Validate() error {
	if err := ValidateChannels(r.R, r.G, r.B); err != nil {
		return err
	}
	if math.IsNaN(r.Brix) || math.IsInf(r.Brix, 0) || r.Brix < 0 {
		return &ValidationError{Field: "brix", Message: "brix must be zero or greater"}
	}
	if math.IsNaN(r.Hardness) || math.IsInf(r.Hardness, 0) || r.Hardness < 0 {
		return &ValidationError{Field: "hardness", Message: "hardness must be zero or greater"}
	}
	return nil
}

// Wire returns the JSON body sent to the prediction service
func (r Request) Wire() models.PredictRequest {
	return models.PredictRequest{
		R:        r.R,
		G:        r.G,
		B:        r.B,
		Brix:     r.Brix,
		Hardness: r.Hardness,
	}
}

// Inputs renders the request back into field text
func (r Request) Inputs() Inputs {
	return Inputs{
		R:        formatNumber(r.R),
		G:        formatNumber(r.G),
		B:        formatNumber(r.B),
		Brix:     formatNumber(r.Brix),
		Hardness: formatNumber(r.Hardness),
	}
}

// RequestFromWire is the inverse of Wire
func RequestFromWire(w models.PredictRequest) Request {
	return Request{R: w.R, G: w.G, B: w.B, Brix: w.Brix, Hardness: w.Hardness}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
