package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kartoza/antiox-predictor/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const predictSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["r", "g", "b", "brix", "hardness"],
	"properties": {
		"r":        {"type": "number", "minimum": 0, "maximum": 255},
		"g":        {"type": "number", "minimum": 0, "maximum": 255},
		"b":        {"type": "number", "minimum": 0, "maximum": 255},
		"brix":     {"type": "number", "minimum": 0},
		"hardness": {"type": "number", "minimum": 0}
	}
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func predictRequestSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("predict.json", strings.NewReader(predictSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("predict.json")
	})
	return schemaCompiled, schemaErr
}

// decodePredictRequest checks body against the request schema and decodes it
func decodePredictRequest(body []byte) (models.PredictRequest, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.PredictRequest{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	sch, err := predictRequestSchema()
	if err != nil {
		return models.PredictRequest{}, fmt.Errorf("request schema unavailable: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return models.PredictRequest{}, schemaMessage(err)
	}

	var req models.PredictRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return models.PredictRequest{}, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// schemaMessage reduces a schema failure to its first leaf cause
func schemaMessage(err error) error {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if field == "" {
		return errors.New(leaf.Message)
	}
	return fmt.Errorf("%s: %s", field, leaf.Message)
}
