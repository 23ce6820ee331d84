// Package terminal runs the prediction form in a terminal: survey prompts for
// the fields and lipgloss output for the swatch, result and errors.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kartoza/antiox-predictor/internal/form"
	"github.com/kartoza/antiox-predictor/internal/history"
	"github.com/kartoza/antiox-predictor/internal/predict"
)

// View is a form.View that writes to a terminal
type View struct {
	prompter Prompter
	out      io.Writer
	styles   Styles
	inputs   predict.Inputs
	loading  bool
}

// NewView creates a terminal view writing to out
func NewView(out io.Writer, prompter Prompter) *View {
	return &View{
		prompter: prompter,
		out:      out,
		styles:   DefaultStyles(),
	}
}

func (v *View) Inputs() predict.Inputs { return v.inputs }

func (v *View) RenderPreview(s predict.Swatch) {
	fmt.Fprintf(v.out, "%s %s\n", v.styles.swatchBlock(s.Hex()), s.Label)
}

func (v *View) RenderResult(req predict.Request, r predict.Result) {
	in := req.Inputs()
	body := strings.Join([]string{
		v.styles.Title.Render("Predicted anti-oxidation"),
		v.styles.Value.Render(r.Display()),
		"",
		v.styles.Muted.Render(fmt.Sprintf("R: %s  G: %s  B: %s", in.R, in.G, in.B)),
		v.styles.Muted.Render(fmt.Sprintf("Brix: %s °Bx  Hardness: %s", in.Brix, in.Hardness)),
	}, "\n")
	fmt.Fprintln(v.out, v.styles.Panel.Render(body))
}

func (v *View) RenderError(err error) {
	fmt.Fprintln(v.out, v.styles.Error.Render(form.Notification(err)))
}

func (v *View) SetLoading(loading bool) {
	if loading && !v.loading {
		fmt.Fprintln(v.out, v.styles.Loading.Render("Predicting…"))
	}
	v.loading = loading
}

// Loading reports whether a prediction is in flight
func (v *View) Loading() bool { return v.loading }

// Ask prompts for the colour channels, previews the swatch, then prompts for
// the measurements. defaults prefill every prompt.
func (v *View) Ask(ctx context.Context, ctrl *form.Controller, defaults predict.Inputs) error {
	channels := []struct {
		label string
		def   string
		dst   *string
	}{
		{"R (0-255)", defaults.R, &v.inputs.R},
		{"G (0-255)", defaults.G, &v.inputs.G},
		{"B (0-255)", defaults.B, &v.inputs.B},
	}
	for _, f := range channels {
		val, err := v.prompter.Input(ctx, InputConfig{
			Message:   f.label,
			Default:   f.def,
			Validator: validateChannel,
		})
		if err != nil {
			return err
		}
		*f.dst = val
	}

	ctrl.UpdatePreview()

	measurements := []struct {
		label string
		help  string
		def   string
		dst   *string
	}{
		{"Brix (°Bx)", "Sugar content", defaults.Brix, &v.inputs.Brix},
		{"Hardness", "Firmness reading", defaults.Hardness, &v.inputs.Hardness},
	}
	for _, f := range measurements {
		val, err := v.prompter.Input(ctx, InputConfig{
			Message:   f.label,
			Default:   f.def,
			Help:      f.help,
			Validator: validateMeasurement,
		})
		if err != nil {
			return err
		}
		*f.dst = val
	}
	return nil
}

// Run asks for every field and submits the form once
func Run(ctx context.Context, v *View, ctrl *form.Controller, defaults predict.Inputs) (predict.Result, error) {
	if err := v.Ask(ctx, ctrl, defaults); err != nil {
		return predict.Result{}, err
	}
	return ctrl.SubmitForm(ctx)
}

func validateChannel(raw string) error {
	n, ok := predict.ParseNumber(raw)
	if !ok {
		return errors.New("enter a number")
	}
	if n < predict.ChannelMin || n > predict.ChannelMax {
		return fmt.Errorf("must be between %d and %d", predict.ChannelMin, predict.ChannelMax)
	}
	return nil
}

func validateMeasurement(raw string) error {
	n, ok := predict.ParseNumber(raw)
	if !ok {
		return errors.New("enter a number")
	}
	if n < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

// PrintHistory writes one line per entry: swatch, colour, prediction and time
func PrintHistory(out io.Writer, entries []history.Entry) {
	styles := DefaultStyles()
	if len(entries) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("No predictions yet"))
		return
	}
	for _, e := range entries {
		swatch := predict.PreviewValues(e.Request.R, e.Request.G, e.Request.B)
		fmt.Fprintf(out, "%s %-20s %s  %s\n",
			styles.swatchBlock(swatch.Hex()),
			swatch.Label,
			styles.Value.Render(e.Display()),
			styles.Muted.Render(e.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	}
}
