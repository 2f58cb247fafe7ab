package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"milesync/internal"
	"milesync/internal/config"
)

const messagesPath = "/api/v1/messages"

// HTTPClient talks to the backend daemon over its JSON message endpoint.
type HTTPClient struct {
	baseURL     string
	clientID    string
	maxAttempts int
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	backoff     func(attempt int) time.Duration

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(cfg config.Config, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.BackendMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	rps := cfg.BackendRateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BackendBaseURL, "/"),
		clientID:    cfg.BackendClientID,
		maxAttempts: attempts,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.BackendTimeoutMs) * time.Millisecond},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		logger:      logger.With("component", "backend"),
		backoff:     jitteredBackoff,
		token:       cfg.BackendToken,
	}
}

func (c *HTTPClient) CheckConsent(ctx context.Context) (bool, error) {
	resp, err := c.send(ctx, Message{Action: ActionCheckConsent})
	if err != nil {
		return false, err
	}
	return resp.HasConsent, nil
}

func (c *HTTPClient) SetConsent(ctx context.Context, accepted bool) error {
	_, err := c.send(ctx, Message{Action: ActionSetConsent, Accepted: &accepted})
	return err
}

func (c *HTTPClient) CheckAuth(ctx context.Context) (bool, error) {
	resp, err := c.send(ctx, Message{Action: ActionCheckAuth})
	if err != nil {
		return false, err
	}
	return resp.Authenticated, nil
}

// SetAuth registers token with the backend and uses it for later requests.
func (c *HTTPClient) SetAuth(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	if _, err := c.send(ctx, Message{Action: ActionSetAuth, Token: token}); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	_, err := c.send(ctx, Message{Action: ActionLogout})
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return err
}

func (c *HTTPClient) CheckRateLimit(ctx context.Context, programCode string) (RateLimit, error) {
	resp, err := c.send(ctx, Message{Action: ActionCheckRateLimit, ProgramCode: programCode})
	if err != nil {
		return RateLimit{}, err
	}
	return RateLimit{Allowed: resp.Allowed, Message: resp.Message}, nil
}

func (c *HTTPClient) SyncMiles(ctx context.Context, data internal.DetectedData) (SyncResult, error) {
	resp, err := c.send(ctx, Message{Action: ActionSyncMiles, Data: &data})
	if err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Success: resp.Success, Message: resp.Message}, nil
}

func (c *HTTPClient) send(ctx context.Context, msg Message) (Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Response{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
		if err != nil {
			return Response{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Client-ID", c.clientID)
		if token := c.currentToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", ErrBackend, err)
			c.logger.Warn("backend request failed", "action", msg.Action, "attempt", attempt, "error", err)
			if !c.sleep(ctx, attempt) {
				return Response{}, ctx.Err()
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: %v", ErrBackend, readErr)
			if !c.sleep(ctx, attempt) {
				return Response{}, ctx.Err()
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := statusError(resp.StatusCode, respBody)
			if isRetryableStatus(resp.StatusCode) && attempt < c.maxAttempts {
				c.logger.Warn("backend status", "action", msg.Action, "attempt", attempt, "status", resp.StatusCode)
				lastErr = statusErr
				if !c.sleep(ctx, attempt) {
					return Response{}, ctx.Err()
				}
				continue
			}
			return Response{}, statusErr
		}

		var out Response
		if err := json.Unmarshal(respBody, &out); err != nil {
			return Response{}, fmt.Errorf("%w: decoding %s response: %v", ErrBackend, msg.Action, err)
		}
		c.logger.Debug("backend response", "action", msg.Action, "success", out.Success)
		return out, nil
	}

	if lastErr == nil {
		lastErr = ErrBackend
	}
	return Response{}, lastErr
}

func (c *HTTPClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) sleep(ctx context.Context, attempt int) bool {
	if attempt >= c.maxAttempts {
		return true
	}
	timer := time.NewTimer(c.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func jitteredBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func statusError(status int, body []byte) error {
	var resp Response
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &resp) == nil && resp.Message != "" {
		msg = resp.Message
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	default:
		return fmt.Errorf("%w: status=%d body=%s", ErrBackend, status, msg)
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
