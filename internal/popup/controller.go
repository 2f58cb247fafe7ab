package popup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"milesync/internal"
	"milesync/internal/backend"
	"milesync/internal/programs"
)

type Screen string

const (
	ScreenConsent     Screen = "consent"
	ScreenLogin       Screen = "login"
	ScreenUnsupported Screen = "unsupported"
	ScreenMain        Screen = "main"
)

// Tab is the page the user is currently looking at.
type Tab interface {
	URL(ctx context.Context) (string, error)
	Extract(ctx context.Context, program internal.Program) (internal.ExtractionResult, error)
	Navigate(ctx context.Context, url string) error
}

// View renders the popup. Implementations must not call back into the
// Controller synchronously.
type View interface {
	SetSyncEnabled(enabled bool)
	ShowStatus(code StatusCode, message string)
	ShowConfirmation(data internal.DetectedData)
	ShowManual(program internal.Program, clickInstruction string)
	SetBadge(text, color string)
	Close()
}

type Controller struct {
	backend  backend.Client
	tab      Tab
	view     View
	registry *programs.Registry
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state State
}

func NewController(client backend.Client, tab Tab, view View, registry *programs.Registry, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		backend:  client,
		tab:      tab,
		view:     view,
		registry: registry,
		logger:   logger.With("component", "popup"),
		now:      time.Now,
		state:    NewState(nil, ""),
	}
}

// Open resets the popup and runs the consent, auth and site checks in that
// order. Only ScreenMain accepts sync events.
func (c *Controller) Open(ctx context.Context) (Screen, error) {
	c.reset(nil, "")

	consent, err := c.backend.CheckConsent(ctx)
	if err != nil {
		return "", fmt.Errorf("check consent: %w", err)
	}
	if !consent {
		return ScreenConsent, nil
	}

	authed, err := c.backend.CheckAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("check auth: %w", err)
	}
	if !authed {
		return ScreenLogin, nil
	}

	url, err := c.tab.URL(ctx)
	if err != nil {
		return "", fmt.Errorf("active tab: %w", err)
	}
	program := c.registry.Lookup(url)
	if program == nil {
		c.logger.Debug("unsupported site", "url", url)
		return ScreenUnsupported, nil
	}

	c.reset(program, url)
	c.logger.Debug("popup opened", "program", program.Code, "url", url)
	return ScreenMain, nil
}

func (c *Controller) AcceptConsent(ctx context.Context) (Screen, error) {
	if err := c.backend.SetConsent(ctx, true); err != nil {
		return "", fmt.Errorf("set consent: %w", err)
	}
	return c.Open(ctx)
}

func (c *Controller) Login(ctx context.Context, token string) (Screen, error) {
	if err := c.backend.SetAuth(ctx, token); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return c.Open(ctx)
}

func (c *Controller) Logout(ctx context.Context) (Screen, error) {
	c.reset(nil, "")
	if err := c.backend.Logout(ctx); err != nil {
		return "", fmt.Errorf("logout: %w", err)
	}
	return ScreenLogin, nil
}

// State returns a snapshot of the current popup state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Detected != nil {
		d := *s.Detected
		s.Detected = &d
	}
	return s
}

// Dispatch applies ev and runs the resulting effects. Effects that produce a
// follow-up event (extraction, backend sync) dispatch it before returning, so
// a SyncClicked returns once the flow reaches a resting state.
func (c *Controller) Dispatch(ctx context.Context, ev Event) {
	c.mu.Lock()
	next, effects := Transition(c.state, ev)
	c.state = next
	c.mu.Unlock()

	for _, eff := range effects {
		c.run(ctx, eff)
	}
}

func (c *Controller) run(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case SetSyncEnabled:
		c.view.SetSyncEnabled(e.Enabled)
	case ShowStatus:
		c.view.ShowStatus(e.Code, e.Message)
	case ShowConfirmation:
		c.view.ShowConfirmation(e.Data)
	case ShowManual:
		c.view.ShowManual(e.Program, e.ClickInstruction)
	case SetBadge:
		c.view.SetBadge(e.Text, e.Color)
	case ClosePopup:
		c.view.Close()
	case RunExtraction:
		c.Dispatch(ctx, c.extract(ctx, e.Program))
	case SubmitSync:
		c.Dispatch(ctx, c.submit(ctx, e.Data))
	case NavigateTab:
		if err := c.tab.Navigate(ctx, e.URL); err != nil {
			c.logger.Warn("navigate failed", "url", e.URL, "error", err)
		}
	default:
		c.logger.Warn("unknown effect", "effect", fmt.Sprintf("%T", eff))
	}
}

func (c *Controller) extract(ctx context.Context, program internal.Program) Event {
	url, err := c.tab.URL(ctx)
	if err != nil {
		return ExtractionErrored{Err: err}
	}
	result, err := c.tab.Extract(ctx, program)
	if err != nil {
		c.logger.Warn("extraction failed", "program", program.Code, "error", err)
		return ExtractionErrored{Err: err}
	}
	c.logger.Info("extraction finished",
		"program", program.Code,
		"success", result.Success,
		"balance", result.Balance,
		"score", result.Score,
		"candidates", result.CandidatesCount,
		"error", string(result.Error),
	)
	return ExtractionFinished{Result: result, URL: url, At: c.now()}
}

func (c *Controller) submit(ctx context.Context, data internal.DetectedData) Event {
	limit, err := c.backend.CheckRateLimit(ctx, data.Program)
	if err != nil {
		return syncFailure(err)
	}
	if !limit.Allowed {
		return SyncFinished{RateLimited: true, Message: limit.Message}
	}

	result, err := c.backend.SyncMiles(ctx, data)
	if err != nil {
		c.logger.Warn("sync failed", "program", data.Program, "error", err)
		return syncFailure(err)
	}
	if result.Success {
		c.logger.Info("balance synced", "program", data.Program, "balance", data.Balance)
	}
	return SyncFinished{Success: result.Success, Message: result.Message}
}

func syncFailure(err error) Event {
	if errors.Is(err, backend.ErrRateLimited) {
		return SyncFinished{RateLimited: true, Message: err.Error()}
	}
	return SyncErrored{Err: err}
}

func (c *Controller) reset(program *internal.Program, url string) {
	c.mu.Lock()
	c.state = NewState(program, url)
	c.mu.Unlock()
}
