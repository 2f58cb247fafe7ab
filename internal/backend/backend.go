// Package backend is the capability interface to the service that stores
// consent, sessions and synced balances, plus its HTTP implementation.
package backend

import (
	"context"
	"errors"

	"milesync/internal"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=backend.go Client

// Client has one method per action of the extension message contract.
type Client interface {
	CheckConsent(ctx context.Context) (bool, error)
	SetConsent(ctx context.Context, accepted bool) error
	CheckAuth(ctx context.Context) (bool, error)
	SetAuth(ctx context.Context, token string) error
	Logout(ctx context.Context) error
	CheckRateLimit(ctx context.Context, programCode string) (RateLimit, error)
	SyncMiles(ctx context.Context, data internal.DetectedData) (SyncResult, error)
}

const (
	ActionCheckConsent   = "checkConsent"
	ActionSetConsent     = "setConsent"
	ActionCheckAuth      = "checkAuth"
	ActionSetAuth        = "setAuth"
	ActionLogout         = "logout"
	ActionCheckRateLimit = "checkRateLimit"
	ActionSyncMiles      = "syncMiles"
)

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrRateLimited  = errors.New("backend: too many requests")
	ErrBackend      = errors.New("backend: request failed")
)

// Message is the {action, ...payload} envelope sent to the backend.
type Message struct {
	Action      string                 `json:"action"`
	Accepted    *bool                  `json:"accepted,omitempty"`
	Token       string                 `json:"token,omitempty"`
	ProgramCode string                 `json:"programCode,omitempty"`
	Data        *internal.DetectedData `json:"data,omitempty"`
}

// Response is the union of every action's reply.
type Response struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	HasConsent    bool   `json:"hasConsent"`
	Authenticated bool   `json:"authenticated"`
	Allowed       bool   `json:"allowed"`
}

type RateLimit struct {
	Allowed bool
	Message string
}

type SyncResult struct {
	Success bool
	Message string
}
