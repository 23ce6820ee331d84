package models

// PredictRequest is the body posted to the prediction service.
// Field order is part of the wire contract.
type PredictRequest struct {
	R        float64 `json:"r"`
	G        float64 `json:"g"`
	B        float64 `json:"b"`
	Brix     float64 `json:"brix"`
	Hardness float64 `json:"hardness"`
}

// ErrorResponse is the body of a failed reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse mirrors the prediction service health probe
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// PredictionView is what the local API returns for a completed prediction
type PredictionView struct {
	Prediction float64        `json:"prediction"`
	Display    string         `json:"display"`
	Input      PredictRequest `json:"input"`
}

// SwatchView is the JSON shape of a colour preview
type SwatchView struct {
	CSS   string   `json:"css"`
	Label string   `json:"label"`
	Color [3]uint8 `json:"color"`
}
