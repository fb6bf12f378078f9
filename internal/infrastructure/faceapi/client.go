package faceapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/gatehouse/internal/biometric"
	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/reliability/circuitbreaker"
	"github.com/yourorg/gatehouse/internal/reliability/retry"
)

// Client talks to the face-embedding inference sidecar over HTTP. It
// implements biometric.Embedder. Calls are traced, retried with backoff,
// and guarded by a circuit breaker so a dead model server fails fast.
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg *retry.Config
	logger   *slog.Logger
}

type embedRequest struct {
	Image string `json:"image"` // base64
}

type embedResponse struct {
	Embedding biometric.Embedding `json:"embedding"`
	Error     string              `json:"error"`
}

// NewClient creates a face API client. timeout bounds a single inference
// round trip; the matcher applies its own overall deadline on top.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("face api base url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker:  circuitbreaker.New(5, 2, 30*time.Second),
		retryCfg: retry.DefaultConfig(),
		logger:   logger,
	}, nil
}

// Embed extracts a face embedding from raw image bytes. Undecodable images
// fail locally with domain.ErrCorruptImage before anything is sent; the
// model answering "no face" maps to domain.ErrNoFaceDetected.
func (c *Client) Embed(ctx context.Context, img []byte) (biometric.Embedding, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptImage, err)
	}

	return retry.Do(ctx, c.retryCfg, c.logger, "faceapi.embed", func(ctx context.Context) (biometric.Embedding, error) {
		if !c.breaker.AllowRequest() {
			return nil, retry.Permanent(fmt.Errorf("%w: face api circuit open", domain.ErrMatchTimeout))
		}

		embedding, err := c.embedOnce(ctx, img)
		if err != nil {
			if isPermanent(err) {
				return nil, retry.Permanent(err)
			}
			c.breaker.RecordFailure()
			return nil, err
		}

		c.breaker.RecordSuccess()
		return embedding, nil
	})
}

func (c *Client) embedOnce(ctx context.Context, img []byte) (biometric.Embedding, error) {
	body, err := json.Marshal(embedRequest{Image: base64.StdEncoding.EncodeToString(img)})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face api call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	var parsed embedResponse
	if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("decode embed response: %w", jsonErr)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if len(parsed.Embedding) == 0 {
			return nil, errors.New("face api returned empty embedding")
		}
		return parsed.Embedding, nil
	case http.StatusUnprocessableEntity:
		return nil, domain.ErrNoFaceDetected
	case http.StatusBadRequest:
		return nil, domain.ErrCorruptImage
	default:
		return nil, fmt.Errorf("face api status %d: %s", resp.StatusCode, strings.TrimSpace(parsed.Error))
	}
}

// Permanent outcomes repeat identically; retrying hides them from the caller.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrNoFaceDetected) ||
		errors.Is(err, domain.ErrCorruptImage) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
