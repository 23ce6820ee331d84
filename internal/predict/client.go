package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"

	"github.com/kartoza/antiox-predictor/internal/models"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultEndpoint is the address of a locally running prediction service
const DefaultEndpoint = "http://localhost:5000/predict"

const maxResponseBytes = 1 << 20

// Result is the value returned by the prediction service
type Result struct {
	Value float64
}

// Display renders the prediction with two decimals
func (r Result) Display() string {
	return FormatPrediction(r.Value)
}

// FormatPrediction rounds to two decimal places the way JavaScript's
// toFixed(2) does: the exact binary value is rounded, ties away from zero.
func FormatPrediction(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return exactDecimal(v).StringFixed(2)
}

// exactDecimal returns the full decimal expansion of v. decimal.NewFromFloat
// would use the shortest representation instead (1.005 rather than
// 1.00499999999999989…).
func exactDecimal(v float64) decimal.Decimal {
	frac, exp := math.Frexp(v)
	mant := big.NewInt(int64(frac * (1 << 53)))
	exp -= 53
	if exp >= 0 {
		return decimal.NewFromBigInt(mant.Lsh(mant, uint(exp)), 0)
	}
	// mant / 2^k == mant * 5^k / 10^k
	k := int64(-exp)
	five := new(big.Int).Exp(big.NewInt(5), big.NewInt(k), nil)
	return decimal.NewFromBigInt(mant.Mul(mant, five), int32(-k))
}

// Client posts requests to the prediction service. A single attempt is made
// per call; there is no retry and no client-side timeout.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.RWMutex
	endpoint string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the given predict endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
		endpoint:   endpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the current predict URL
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// SetEndpoint changes the predict URL for subsequent calls
func (c *Client) SetEndpoint(endpoint string) {
	if endpoint == "" {
		return
	}
	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
}

// Predict sends the request and returns the service's prediction
func (c *Client) Predict(ctx context.Context, req Request) (Result, error) {
	endpoint := c.Endpoint()

	body, err := json.Marshal(req.Wire())
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, &RequestError{Message: "invalid prediction endpoint", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Posting prediction request",
		zap.String("endpoint", endpoint),
		zap.ByteString("body", body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, &RequestError{Message: "prediction service unreachable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, &RequestError{Message: "failed to read prediction response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := FallbackMessage
		if gjson.ValidBytes(data) {
			if e := gjson.GetBytes(data, "error"); e.Exists() {
				msg = e.String()
			}
		}
		return Result{}, &RequestError{StatusCode: resp.StatusCode, Message: cleanMessage(msg)}
	}

	if !gjson.ValidBytes(data) {
		return Result{}, &RequestError{Message: "unexpected response", Err: ErrMalformedResponse}
	}
	prediction := gjson.GetBytes(data, "prediction")
	if prediction.Type != gjson.Number {
		return Result{}, &RequestError{Message: "unexpected response", Err: fmt.Errorf("%w: missing prediction", ErrMalformedResponse)}
	}

	c.logger.Debug("Prediction received", zap.Float64("prediction", prediction.Float()))
	return Result{Value: prediction.Float()}, nil
}

// Health queries the service's /health endpoint, a sibling of the predict path
func (c *Client) Health(ctx context.Context) (models.HealthResponse, error) {
	healthURL, err := HealthURL(c.Endpoint())
	if err != nil {
		return models.HealthResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return models.HealthResponse{}, fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.HealthResponse{}, &RequestError{Message: "prediction service unreachable", Err: err}
	}
	defer resp.Body.Close()

	var health models.HealthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&health); err != nil {
		return models.HealthResponse{}, &RequestError{StatusCode: resp.StatusCode, Message: "invalid health response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return health, &RequestError{StatusCode: resp.StatusCode, Message: "prediction service unhealthy"}
	}
	return health, nil
}

// HealthURL derives the health probe address from a predict endpoint
func HealthURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q is not an absolute URL", endpoint)
	}
	u.Path = path.Join(path.Dir(u.Path), "health")
	u.RawQuery = ""
	return u.String(), nil
}
