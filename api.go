package bmauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// apiClient speaks to the three marketplace endpoints the SDK consumes.
// It uses the bare underlying transport, never the authenticating one:
// authenticate and refresh run without (or with a known-bad) access
// token, and routing them through the interceptor would recurse.
type apiClient struct {
	baseURL string
	cfg     APIConfig
	http    *http.Client
	log     zerolog.Logger
}

func newAPIClient(cfg APIConfig, base http.RoundTripper, log zerolog.Logger) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		http: &http.Client{
			Transport: base,
			Timeout:   cfg.Timeout,
		},
		log: log,
	}
}

func (c *apiClient) post(ctx context.Context, path, bearer string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("api: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s: %w", path, err)
	}
	return nil
}

// Authenticate submits a credential. A remote decline (isSuccess=false)
// comes back as *CredentialError; transport and decode problems come
// back as ordinary errors.
func (c *apiClient) Authenticate(ctx context.Context, cred Credential) (*authenticateOutput, error) {
	var resp authenticateResponse
	if err := c.post(ctx, c.cfg.AuthenticatePath, "", cred, &resp); err != nil {
		return nil, err
	}
	if !resp.IsSuccess || resp.Output == nil {
		return nil, &CredentialError{Reason: resp.FailureReason}
	}
	if resp.Output.Token == "" || resp.Output.RefreshToken == "" {
		return nil, fmt.Errorf("api: authenticate returned an incomplete token pair")
	}
	return resp.Output, nil
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *apiClient) RefreshToken(ctx context.Context, refreshToken string) (*refreshResponse, error) {
	var resp refreshResponse
	if err := c.post(ctx, c.cfg.RefreshPath, "", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("api: refresh returned no access token")
	}
	return &resp, nil
}

// Logout asks the server to invalidate the session. Best effort: the
// caller clears local state whether or not this succeeds.
func (c *apiClient) Logout(ctx context.Context, bearer string) error {
	return c.post(ctx, c.cfg.LogoutPath, bearer, struct{}{}, nil)
}
