package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/ports/outbound"
)

const refreshPath = "token/refresh/"

// Gateway performs HTTP exchanges against the marketplace backend with
// bearer-token authorization, transparently handling access-token expiry:
// on a 401 it performs a one-shot token refresh and retries the original
// request exactly once. It never refreshes proactively.
type Gateway struct {
	client  *http.Client
	baseURL string
	store   outbound.TokenStore
	logger  zerolog.Logger
}

type Params struct {
	HTTPClient *http.Client
	BaseURL    string
	Store      outbound.TokenStore
	Logger     zerolog.Logger
}

// New creates a gateway. When no HTTP client is injected a default one with
// a shared cookie jar is built, so credentials always travel with requests.
func New(params Params) *Gateway {
	client := params.HTTPClient
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		}
	}
	return &Gateway{
		client:  client,
		baseURL: strings.TrimSuffix(params.BaseURL, "/"),
		store:   params.Store,
		logger:  params.Logger.With().Str("component", "gateway").Logger(),
	}
}

// Request describes one backend exchange.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// JSON, when non-nil, is marshalled as the request body.
	JSON any
	// Form, when non-nil, takes precedence over JSON and is sent as
	// multipart form data with the runtime-chosen boundary.
	Form   *Form
	Header http.Header
}

func (g *Gateway) endpoint(path string, query url.Values) string {
	u := g.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// build constructs a fresh *http.Request carrying the given access token.
// It is called again on retry so body readers are never reused.
func (g *Gateway) build(ctx context.Context, req Request, token, requestID string) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		body = bytes.NewReader(req.Form.payload)
		contentType = req.Form.contentType
	case req.JSON != nil:
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	default:
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, g.endpoint(req.Path, req.Query), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	return httpReq, nil
}

// Do executes the exchange. On a 401 it reads the refresh token from the
// store; when absent the original 401 is returned unchanged. Otherwise it
// calls the refresh endpoint once, stores the new access token and replays
// the request with it. On refresh failure the original 401 is returned.
// Network failures propagate; any other non-2xx response is returned as-is
// for the caller to interpret.
func (g *Gateway) Do(ctx context.Context, req Request) (*http.Response, error) {
	requestID := uuid.New().String()

	httpReq, err := g.build(ctx, req, g.store.Access(), requestID)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	newAccess, ok := g.refreshAccess(ctx)
	if !ok {
		return resp, nil
	}
	resp.Body.Close()

	g.logger.Debug().
		Str("request_id", requestID).
		Str("path", req.Path).
		Msg("Retrying request with refreshed access token")

	retryReq, err := g.build(ctx, req, newAccess, requestID)
	if err != nil {
		return nil, err
	}
	retried, err := g.client.Do(retryReq)
	if err != nil {
		return nil, fmt.Errorf("retried request failed: %w", err)
	}
	return retried, nil
}

// refreshAccess performs the one-shot reactive token refresh. Two in-flight
// requests hitting 401 together both refresh; the store's last write wins
// and both values are valid.
func (g *Gateway) refreshAccess(ctx context.Context) (string, bool) {
	refresh := g.store.RefreshToken()
	if refresh == "" {
		return "", false
	}

	payload, _ := json.Marshal(map[string]string{"refresh": refresh})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(refreshPath, nil), bytes.NewReader(payload))
	if err != nil {
		return "", false
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Token refresh request failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn().Int("status", resp.StatusCode).Msg("Token refresh rejected")
		return "", false
	}

	var body struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Access == "" {
		return "", false
	}

	if err := g.store.SetAccess(body.Access); err != nil {
		g.logger.Error().Err(err).Msg("Failed to store refreshed access token")
		return "", false
	}
	g.logger.Info().Msg("Access token refreshed")
	return body.Access, true
}

// JSON executes the exchange and decodes a successful JSON response into
// out. Paginated responses (a results list alongside count/next/previous)
// are unwrapped into out with the page metadata returned; non-paginated
// payloads are passed through as-is. Non-2xx responses become *APIError.
func (g *Gateway) JSON(ctx context.Context, req Request, out any) (*PageMeta, error) {
	resp, err := g.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ParseAPIError(resp.StatusCode, body)
	}

	if out == nil || len(body) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return decodeBody(body, out)
}
