// Package form implements the prediction form controller. The controller never
// touches a rendering environment directly; every visible effect goes through
// an injected View.
package form

import (
	"context"
	"errors"

	"github.com/kartoza/antiox-predictor/internal/predict"
)

// View is the set of capabilities the controller needs from a host
// environment (a web page, a terminal).
type View interface {
	// Inputs returns the current raw text of the five fields
	Inputs() predict.Inputs
	RenderPreview(swatch predict.Swatch)
	// RenderResult shows the prediction and reveals the results panel
	RenderResult(req predict.Request, result predict.Result)
	// RenderError notifies the user; the form stays usable
	RenderError(err error)
	SetLoading(loading bool)
}

// Predictor performs a single prediction call
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (predict.Result, error)
}

// Recorder receives completed predictions
type Recorder interface {
	Record(ctx context.Context, req predict.Request, result predict.Result) error
}

// Notification is the user-facing text for an error raised by the controller
func Notification(err error) string {
	if err == nil {
		return ""
	}
	var verr *predict.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var rerr *predict.RequestError
	if errors.As(err, &rerr) && rerr.Error() == predict.FallbackMessage {
		return predict.FallbackMessage
	}
	return predict.FallbackMessage + ": " + err.Error()
}

// Recorders fans a completed prediction out to several recorders
type Recorders []Recorder

// Record calls every recorder and joins their errors
func (rs Recorders) Record(ctx context.Context, req predict.Request, result predict.Result) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(ctx, req, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
