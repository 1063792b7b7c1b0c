// Package vision provides the client for the external generative vision
// service. The service both edits images (generation) and answers
// structured questions about image pairs (semantic checks); both go
// through the same Generate call.
//
// Every call carries a bounded timeout and is cancellable through its
// context. The client is a process-wide singleton: calls are stateless,
// so connection reuse across jobs is safe.
package vision

import (
	"context"
	"image"
)

// SamplingParams controls generation randomness. The stricter retry passes
// a reduced temperature here.
type SamplingParams struct {
	// Temperature is the sampling temperature in [0,2].
	Temperature float64 `json:"temperature"`
}

// Request is one call to the vision service: zero or more input images
// plus an instruction, with sampling parameters.
type Request struct {
	// Images are the input rasters, sent in order.
	Images []image.Image

	// Instruction is the text prompt. Never logged verbatim at info level.
	Instruction string

	// Sampling controls generation randomness.
	Sampling SamplingParams
}

// Response is the service's answer. Either part may be absent; a response
// with neither part is treated as a failed call by the client and never
// reaches consumers.
type Response struct {
	// Image is the generated image part, nil when the response carried none.
	Image image.Image

	// Text is the text part, empty when the response carried none.
	Text string
}

// Empty reports whether the response carries no usable part.
func (r *Response) Empty() bool {
	return r == nil || (r.Image == nil && r.Text == "")
}

// Service is the narrow seam to the external vision model. Production uses
// Client; tests substitute in-package mocks.
type Service interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}
