package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/kartoza/antiox-predictor/internal/config"
	"github.com/kartoza/antiox-predictor/internal/form"
	"github.com/kartoza/antiox-predictor/internal/predict"
	"go.uber.org/zap"
)

const recentLimit = 5

// pageView is the web form as a form.View. One is built per request and
// rendered once the controller is done with it.
type pageView struct {
	inputs  predict.Inputs
	swatch  predict.Swatch
	result  *pageResult
	errMsg  string
	loading bool
	logger  *zap.Logger
}

type pageResult struct {
	Display string
	Input   predict.Request
}

func (v *pageView) Inputs() predict.Inputs { return v.inputs }

func (v *pageView) RenderPreview(s predict.Swatch) { v.swatch = s }

func (v *pageView) RenderResult(req predict.Request, r predict.Result) {
	v.result = &pageResult{Display: r.Display(), Input: req}
	v.errMsg = ""
}

func (v *pageView) RenderError(err error) {
	v.errMsg = form.Notification(err)
}

func (v *pageView) SetLoading(loading bool) {
	v.loading = loading
	v.logger.Debug("Form loading state", zap.Bool("loading", loading))
}

// pageData is handed to the index template
type pageData struct {
	Inputs   predict.Inputs
	Swatch   predict.Swatch
	Result   *pageResult
	Error    string
	Loading  bool
	Endpoint string
	Version  string
	Recent   []recentRow
}

type recentRow struct {
	When    string
	Color   string
	Label   string
	Display string
}

// handleFormPage renders the form prefilled with the last submitted values
func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	settings, err := config.LoadSettings(s.cfg.DataDir)
	if err != nil {
		s.logger.Warn("Could not load settings", zap.Error(err))
	}

	view := &pageView{inputs: settings.Prefill(), logger: s.logger}
	ctrl := form.NewController(s.client, view, form.WithLogger(s.logger))
	ctrl.UpdatePreview()

	s.renderPage(r.Context(), w, view)
}

// handleFormSubmit previews or submits the posted form
func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	view := &pageView{
		inputs: predict.Inputs{
			R:        r.PostFormValue("r"),
			G:        r.PostFormValue("g"),
			B:        r.PostFormValue("b"),
			Brix:     r.PostFormValue("brix"),
			Hardness: r.PostFormValue("hardness"),
		},
		logger: s.logger,
	}
	ctrl := form.NewController(s.client, view,
		form.WithRecorder(s.recorder),
		form.WithLogger(s.logger))

	ctrl.UpdatePreview()
	if r.PostFormValue("action") != "preview" {
		ctrl.SubmitForm(r.Context())
	}

	s.renderPage(r.Context(), w, view)
}

func (s *Server) renderPage(ctx context.Context, w http.ResponseWriter, view *pageView) {
	data := pageData{
		Inputs:   view.inputs,
		Swatch:   view.swatch,
		Result:   view.result,
		Error:    view.errMsg,
		Loading:  view.loading,
		Endpoint: s.client.Endpoint(),
		Version:  s.cfg.Version,
		Recent:   s.recentRows(ctx),
	}

	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.Error("Error rendering form page", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) recentRows(ctx context.Context) []recentRow {
	if s.store == nil {
		return nil
	}
	entries, err := s.store.List(ctx, recentLimit)
	if err != nil {
		s.logger.Warn("Could not list history", zap.Error(err))
		return nil
	}

	rows := make([]recentRow, 0, len(entries))
	for _, e := range entries {
		swatch := predict.PreviewValues(e.Request.R, e.Request.G, e.Request.B)
		rows = append(rows, recentRow{
			When:    e.CreatedAt.Local().Format(time.DateTime),
			Color:   swatch.Hex(),
			Label:   swatch.Label,
			Display: e.Display(),
		})
	}
	return rows
}
