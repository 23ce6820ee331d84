package form

import (
	"context"

	"github.com/kartoza/antiox-predictor/internal/predict"
	"go.uber.org/zap"
)

// Controller drives one form: preview, validation and submission
type Controller struct {
	predictor Predictor
	view      View
	recorder  Recorder
	logger    *zap.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithRecorder stores every successful prediction
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithLogger sets the controller logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController binds a predictor to a view
func NewController(p Predictor, v View, opts ...Option) *Controller {
	c := &Controller{
		predictor: p,
		view:      v,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Outcome is the result/error union delivered by SubmitAsync
type Outcome struct {
	Result predict.Result
	Err    error
}

// UpdatePreview renders the swatch for the current channel fields
func (c *Controller) UpdatePreview() predict.Swatch {
	in := c.view.Inputs()
	swatch := predict.Preview(in.R, in.G, in.B)
	c.view.RenderPreview(swatch)
	return swatch
}

// Validate checks the colour channels and notifies the user on failure
func (c *Controller) Validate(r, g, b float64) bool {
	if err := predict.ValidateChannels(r, g, b); err != nil {
		c.view.RenderError(err)
		return false
	}
	return true
}

// SubmitForm reads the fields from the view, validates them and submits.
// Nothing is sent when the inputs are invalid.
func (c *Controller) SubmitForm(ctx context.Context) (predict.Result, error) {
	req, err := predict.ParseInputs(c.view.Inputs())
	if err != nil {
		c.view.RenderError(err)
		return predict.Result{}, err
	}
	return c.Submit(ctx, req)
}

// Submit sends req to the predictor and renders the outcome. The loading
// indicator is set for the duration of the call and cleared on every path.
func (c *Controller) Submit(ctx context.Context, req predict.Request) (predict.Result, error) {
	if err := req.Validate(); err != nil {
		c.view.RenderError(err)
		return predict.Result{}, err
	}

	c.view.SetLoading(true)
	defer c.view.SetLoading(false)

	result, err := c.predictor.Predict(ctx, req)
	if err != nil {
		c.logger.Warn("Prediction error", zap.Error(err))
		c.view.RenderError(err)
		return predict.Result{}, err
	}

	if c.recorder != nil {
		if rerr := c.recorder.Record(ctx, req, result); rerr != nil {
			c.logger.Warn("Failed to record prediction", zap.Error(rerr))
		}
	}

	c.view.RenderResult(req, result)
	return result, nil
}

// SubmitAsync runs Submit in the background. The returned channel yields
// exactly one Outcome and is then closed.
func (c *Controller) SubmitAsync(ctx context.Context, req predict.Request) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		result, err := c.Submit(ctx, req)
		out <- Outcome{Result: result, Err: err}
	}()
	return out
}
