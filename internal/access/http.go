package access

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HTTPConfig addresses a router management API that issues bearer tokens
// from POST /auth and accepts POST /access-control.
type HTTPConfig struct {
	BaseURL  string
	Username string
	Password string
}

// HTTPController drives a router over its JSON management API. Tokens are
// reused until shortly before the exp claim they carry.
type HTTPController struct {
	cfg        HTTPConfig
	httpClient *http.Client
	now        func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

type HTTPOption func(*HTTPController)

func WithRouterHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPController) {
		h.httpClient = c
	}
}

// tokenSkew is subtracted from the token expiry so a cached token is never
// presented right as it lapses.
const tokenSkew = 30 * time.Second

func NewHTTPController(cfg HTTPConfig, opts ...HTTPOption) *HTTPController {
	h := &HTTPController{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	h.cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type accessRequest struct {
	MACAddress string `json:"macAddress"`
	Allow      bool   `json:"allow"`
}

func (h *HTTPController) SetAccess(ctx context.Context, mac string, allow bool) error {
	mac, err := NormalizeMAC(mac)
	if err != nil {
		return err
	}

	token, err := h.authToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(accessRequest{MACAddress: mac, Allow: allow})
	if err != nil {
		return fmt.Errorf("marshal access request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.BaseURL+"/access-control", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("router access-control: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		h.clearToken()
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("router access-control: status %d", resp.StatusCode)
	}
	return nil
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (h *HTTPController) authToken(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.token != "" && h.now().Before(h.tokenExp) {
		return h.token, nil
	}

	body, err := json.Marshal(authRequest{Username: h.cfg.Username, Password: h.cfg.Password})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.BaseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("router auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("router auth: status %d", resp.StatusCode)
	}
	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if ar.Token == "" {
		return "", fmt.Errorf("router auth: empty token")
	}

	h.token = ar.Token
	h.tokenExp = time.Time{}
	if exp, ok := tokenExpiry(ar.Token); ok {
		h.tokenExp = exp.Add(-tokenSkew)
	}
	return ar.Token, nil
}

func (h *HTTPController) clearToken() {
	h.mu.Lock()
	h.token = ""
	h.tokenExp = time.Time{}
	h.mu.Unlock()
}

// tokenExpiry reads the exp claim of a JWT without verifying it. The router
// signs tokens with a key we do not hold; the claim only drives caching.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
