package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// restResponse is the JSON body returned by ClamAV-style REST scan services.
// Status is "OK" for clean, "FOUND" for infected; Message carries the
// signature name when infected.
type restResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RESTScanner scans files through a ClamAV-compatible REST endpoint.
// A single instance is safe for concurrent use; the underlying http.Client
// pools connections across runs.
type RESTScanner struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewRESTScanner creates a scanner client for the given scan endpoint.
// Each call is bounded by the given timeout.
func NewRESTScanner(endpoint string, timeout time.Duration) *RESTScanner {
	return &RESTScanner{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{},
	}
}

// WithTimeout returns a copy of the scanner using a different per-call
// timeout. Used by the pipeline's shortened retry.
func (s *RESTScanner) WithTimeout(timeout time.Duration) *RESTScanner {
	return &RESTScanner{
		endpoint: s.endpoint,
		timeout:  timeout,
		client:   s.client,
	}
}

// Scan implements Scanner by POSTing the content as a multipart upload and
// interpreting the engine's JSON verdict.
func (s *RESTScanner) Scan(ctx context.Context, r io.Reader, name string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return Unavailable(fmt.Sprintf("building scan request: %v", err), false)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Unavailable(fmt.Sprintf("reading content for scan: %v", err), false)
	}
	if err := mw.Close(); err != nil {
		return Unavailable(fmt.Sprintf("building scan request: %v", err), false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return Unavailable(fmt.Sprintf("building scan request: %v", err), false)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		slog.Warn("signature scan failed", "name", name, "timeout", timedOut, "err", err)
		return Unavailable(err.Error(), timedOut)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Unavailable(fmt.Sprintf("scan endpoint returned %d", resp.StatusCode), false)
	}

	var result restResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Unavailable(fmt.Sprintf("decoding scan response: %v", err), false)
	}

	switch result.Status {
	case "OK":
		return Clean()
	case "FOUND":
		return Infected(result.Message)
	default:
		return Unavailable(fmt.Sprintf("scan engine error: %s", result.Message), false)
	}
}
