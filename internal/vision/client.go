package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/errors"
	"github.com/realenhance/restage/internal/logging"
	"github.com/realenhance/restage/internal/raster"
)

// maxResponseBytes caps how much of a response body is read. Generated
// images arrive base64-encoded, so the cap is generous.
const maxResponseBytes = 64 << 20

// Client talks to a Gemini-style generateContent endpoint over HTTPS.
// It is safe for concurrent use and intended to be shared process-wide.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	model       string
	apiKey      string
	maxAttempts int
}

// NewClient builds a client from config. The API key is read from the
// environment variable named in cfg and never written to disk or logs.
func NewClient(cfg config.VisionConfig) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnvVar)
	if key == "" {
		return nil, errors.Wrapf(errors.ErrConfigInvalidVision, "environment variable %s is not set", cfg.APIKeyEnvVar)
	}
	return &Client{
		httpClient:  &http.Client{},
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		model:       cfg.Model,
		apiKey:      key,
		maxAttempts: defaultMaxAttempts,
	}, nil
}

// Wire types for the generateContent request body.
type wireRequest struct {
	Contents         []wireContent `json:"contents"`
	GenerationConfig wireGenConfig `json:"generationConfig"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
}

type wireInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireGenConfig struct {
	Temperature        float64  `json:"temperature"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// Wire types for the response body.
type wireResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends one request and returns the decoded response. Transient
// failures (network errors, 429, 5xx) are retried with backoff inside the
// call; a response without any usable part is a generation failure and is
// never retried here.
func (c *Client) Generate(ctx context.Context, req *Request) (*Response, error) {
	body, err := c.encodeRequest(req)
	if err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx)
	log.Debug().
		Str("component", "vision").
		Str("model", c.model).
		Int("images", len(req.Images)).
		Float64("temperature", req.Sampling.Temperature).
		Msg("vision request")

	raw, err := c.doWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}
	return decodeResponse(raw)
}

// encodeRequest renders the wire body: instruction text first, then each
// image inline as base64 PNG.
func (c *Client) encodeRequest(req *Request) ([]byte, error) {
	parts := make([]wirePart, 0, len(req.Images)+1)
	if req.Instruction != "" {
		parts = append(parts, wirePart{Text: req.Instruction})
	}
	for _, img := range req.Images {
		data, err := raster.EncodePNG(img)
		if err != nil {
			return nil, err
		}
		parts = append(parts, wirePart{InlineData: &wireInlineData{
			MIMEType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
	}

	wire := wireRequest{
		Contents: []wireContent{{Parts: parts}},
		GenerationConfig: wireGenConfig{
			Temperature:        req.Sampling.Temperature,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode vision request")
	}
	return body, nil
}

// doRequest performs one HTTP round trip and returns the raw body.
func (c *Client) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build vision request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(errors.ErrVisionService, logging.FilterSensitiveValue(err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(errors.ErrVisionService, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: summarizeBody(raw)}
	}
	return raw, nil
}

// decodeResponse maps the wire body onto a Response, taking the first
// image part and the first text part of the first candidate.
func decodeResponse(raw []byte) (*Response, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(errors.ErrVisionEmptyResponse, "zero-length body")
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.Wrap(errors.ErrVisionInvalidFormat, err.Error())
	}
	if wire.Error != nil {
		return nil, errors.Wrapf(errors.ErrVisionService, "code %d: %s", wire.Error.Code, wire.Error.Message)
	}
	if len(wire.Candidates) == 0 {
		return nil, errors.Wrap(errors.ErrVisionEmptyResponse, "no candidates")
	}

	out := &Response{}
	for _, part := range wire.Candidates[0].Content.Parts {
		switch {
		case part.InlineData != nil && out.Image == nil:
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, errors.Wrap(errors.ErrVisionInvalidFormat, err.Error())
			}
			img, err := raster.Decode(data)
			if err != nil {
				return nil, errors.Wrap(errors.ErrVisionInvalidFormat, err.Error())
			}
			out.Image = img
		case part.Text != "" && out.Text == "":
			out.Text = part.Text
		}
	}

	if out.Empty() {
		return nil, errors.Wrap(errors.ErrVisionEmptyResponse, "candidate carries no usable part")
	}
	return out, nil
}

// summarizeBody truncates an error body for inclusion in error messages.
func summarizeBody(raw []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
