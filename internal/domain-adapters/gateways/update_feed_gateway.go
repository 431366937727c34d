package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

const (
	// DefaultBaseURL is the public update service
	DefaultBaseURL = "https://www.victi.ms/"

	// DefaultEntryPoint is the service path below the base url
	DefaultEntryPoint = "service/"

	// sinceLayout formats the since parameter of the update endpoint
	sinceLayout = "2006-01-02T15:04:05"

	// maxUpdatePayload bounds a single update response
	maxUpdatePayload = 256 * 1024 * 1024
)

// signatureVerifier checks a detached signature over a payload
type signatureVerifier interface {
	Verify(data []byte, sig io.Reader) error
}

// updateFeedGateway fetches vulnerability records from the update service
type updateFeedGateway struct {
	baseURL    string
	entryPoint string
	httpClient *http.Client
	verifier   signatureVerifier
}

// UpdateFeedOption configures the update feed gateway
type UpdateFeedOption func(*updateFeedGateway)

// WithHTTPClient replaces the default http client
func WithHTTPClient(client *http.Client) UpdateFeedOption {
	return func(g *updateFeedGateway) {
		g.httpClient = client
	}
}

// WithSignatureVerifier requires a valid detached signature on every payload
func WithSignatureVerifier(verifier signatureVerifier) UpdateFeedOption {
	return func(g *updateFeedGateway) {
		g.verifier = verifier
	}
}

// NewUpdateFeedGateway creates a new update feed gateway.
// Empty baseURL or entryPoint fall back to the public service.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewUpdateFeedGateway(baseURL, entryPoint string, opts ...UpdateFeedOption) *updateFeedGateway {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if entryPoint == "" {
		entryPoint = DefaultEntryPoint
	}
	g := &updateFeedGateway{
		baseURL:    ensureTrailingSlash(baseURL),
		entryPoint: ensureTrailingSlash(strings.TrimPrefix(entryPoint, "/")),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UpdateURL returns the endpoint listing records changed since the given time
func (g *updateFeedGateway) UpdateURL(since time.Time) string {
	if since.IsZero() {
		since = time.Unix(0, 0)
	}
	return fmt.Sprintf("%s%sv2/update/%s/", g.baseURL, g.entryPoint, since.UTC().Format(sinceLayout))
}

// Fetch downloads every record published since the given time
func (g *updateFeedGateway) Fetch(ctx context.Context, since time.Time) ([]entities.VulnerabilityRecord, error) {
	url := g.UpdateURL(since)

	payload, err := g.get(ctx, url, maxUpdatePayload)
	if err != nil {
		return nil, fmt.Errorf("update request failed: %w", err)
	}

	if g.verifier != nil {
		sig, err := g.get(ctx, url+".asc", maxUpdatePayload)
		if err != nil {
			return nil, fmt.Errorf("failed to download update signature: %w", err)
		}
		if err := g.verifier.Verify(payload, bytes.NewReader(sig)); err != nil {
			return nil, fmt.Errorf("update payload rejected: %w", err)
		}
	}

	var records []entities.VulnerabilityRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("failed to parse update response: %w", err)
	}

	for i := range records {
		records[i].CVEs = entities.NormalizeIDs(records[i].CVEs)
	}
	return records, nil
}

func (g *updateFeedGateway) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func ensureTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
