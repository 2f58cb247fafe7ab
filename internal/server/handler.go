package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"milesync/internal/auth"
	"milesync/internal/backend"
	"milesync/internal/config"
	"milesync/internal/programs"
	"milesync/internal/storage"
)

type Handler struct {
	db       *storage.DB
	registry *programs.Registry
	tokens   *auth.Tokens
	cfg      config.Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(db *storage.DB, registry *programs.Registry, tokens *auth.Tokens, cfg config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		db:       db,
		registry: registry,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger.With("component", "server"),
		now:      time.Now,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "milesyncd",
	})
}

type request struct {
	clientID string
	token    string
	msg      backend.Message
}

// Messages dispatches one {action, ...payload} envelope.
func (h *Handler) Messages(c *gin.Context) {
	clientID := strings.TrimSpace(c.GetHeader(clientHeader))
	if clientID == "" {
		c.JSON(http.StatusBadRequest, backend.Response{Message: "missing " + clientHeader})
		return
	}

	var msg backend.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, backend.Response{Message: "invalid message: " + err.Error()})
		return
	}

	req := request{clientID: clientID, token: bearerToken(c.GetHeader("Authorization")), msg: msg}

	var (
		status int
		resp   backend.Response
		err    error
	)
	switch msg.Action {
	case backend.ActionCheckConsent:
		status, resp, err = h.checkConsent(req)
	case backend.ActionSetConsent:
		status, resp, err = h.setConsent(req)
	case backend.ActionCheckAuth:
		status, resp, err = h.checkAuth(req)
	case backend.ActionSetAuth:
		status, resp, err = h.setAuth(req)
	case backend.ActionLogout:
		status, resp, err = h.logout(req)
	case backend.ActionCheckRateLimit:
		status, resp, err = h.checkRateLimit(req)
	case backend.ActionSyncMiles:
		status, resp, err = h.syncMiles(req)
	default:
		status, resp = http.StatusBadRequest, backend.Response{Message: fmt.Sprintf("unknown action %q", msg.Action)}
	}

	if err != nil {
		h.logger.Error("action failed", "action", msg.Action, "client", clientID, "error", err)
		c.JSON(http.StatusInternalServerError, backend.Response{Message: "internal error"})
		return
	}
	c.JSON(status, resp)
}

func (h *Handler) checkConsent(req request) (int, backend.Response, error) {
	ok, err := h.db.HasConsent(req.clientID)
	if err != nil {
		return 0, backend.Response{}, err
	}
	return http.StatusOK, backend.Response{Success: true, HasConsent: ok}, nil
}

func (h *Handler) setConsent(req request) (int, backend.Response, error) {
	if req.msg.Accepted == nil {
		return http.StatusBadRequest, backend.Response{Message: "accepted is required"}, nil
	}
	if err := h.db.SetConsent(req.clientID, *req.msg.Accepted); err != nil {
		return 0, backend.Response{}, err
	}
	return http.StatusOK, backend.Response{Success: true, HasConsent: *req.msg.Accepted}, nil
}

func (h *Handler) checkAuth(req request) (int, backend.Response, error) {
	ok, err := h.db.SessionValid(req.clientID, req.token)
	if err != nil {
		return 0, backend.Response{}, err
	}
	return http.StatusOK, backend.Response{Success: true, Authenticated: ok}, nil
}

func (h *Handler) setAuth(req request) (int, backend.Response, error) {
	token := strings.TrimSpace(req.msg.Token)
	if token == "" {
		return http.StatusBadRequest, backend.Response{Message: "token is required"}, nil
	}
	expiresAt, err := h.tokens.Verify(token, req.clientID)
	if err != nil {
		h.logger.Warn("token rejected", "client", req.clientID, "error", err)
		return http.StatusUnauthorized, backend.Response{Message: "invalid token"}, nil
	}
	ttl := time.Duration(h.cfg.SessionTTLHours) * time.Hour
	if until := expiresAt.Sub(h.now()); until < ttl {
		ttl = until
	}
	if err := h.db.PutSession(req.clientID, token, ttl); err != nil {
		return 0, backend.Response{}, err
	}
	h.logger.Info("session stored", "client", req.clientID)
	return http.StatusOK, backend.Response{Success: true, Authenticated: true}, nil
}

func (h *Handler) logout(req request) (int, backend.Response, error) {
	if err := h.db.DeleteSession(req.clientID); err != nil {
		return 0, backend.Response{}, err
	}
	return http.StatusOK, backend.Response{Success: true}, nil
}

func (h *Handler) checkRateLimit(req request) (int, backend.Response, error) {
	code := strings.TrimSpace(req.msg.ProgramCode)
	program := h.registry.ByCode(code)
	if code == "" || program == nil {
		return http.StatusBadRequest, backend.Response{Message: fmt.Sprintf("unknown program %q", code)}, nil
	}
	wait, err := h.cooldown(req.clientID, program.Code)
	if err != nil {
		return 0, backend.Response{}, err
	}
	if wait > 0 {
		return http.StatusOK, backend.Response{Success: true, Allowed: false, Message: waitMessage(wait)}, nil
	}
	return http.StatusOK, backend.Response{Success: true, Allowed: true}, nil
}

func (h *Handler) syncMiles(req request) (int, backend.Response, error) {
	if h.cfg.SyncRequireAuth {
		ok, err := h.db.SessionValid(req.clientID, req.token)
		if err != nil {
			return 0, backend.Response{}, err
		}
		if !ok {
			return http.StatusUnauthorized, backend.Response{Message: "not authenticated"}, nil
		}
	}

	data := req.msg.Data
	if data == nil {
		return http.StatusBadRequest, backend.Response{Message: "data is required"}, nil
	}
	program := h.registry.ByCode(data.Program)
	if program == nil {
		return http.StatusBadRequest, backend.Response{Message: fmt.Sprintf("unknown program %q", data.Program)}, nil
	}
	w := h.cfg.Weights
	if data.Balance <= w.MinValue || data.Balance >= w.MaxValue {
		return http.StatusBadRequest, backend.Response{Message: fmt.Sprintf("balance %d out of range", data.Balance)}, nil
	}

	wait, err := h.cooldown(req.clientID, program.Code)
	if err != nil {
		return 0, backend.Response{}, err
	}
	if wait > 0 {
		return http.StatusTooManyRequests, backend.Response{Message: waitMessage(wait)}, nil
	}

	normalized := *data
	normalized.Program = program.Code
	if normalized.ProgramName == "" {
		normalized.ProgramName = program.Name
	}
	rec, err := h.db.InsertSync(req.clientID, normalized)
	if err != nil {
		return 0, backend.Response{}, err
	}
	h.logger.Info("balance synced", "client", req.clientID, "program", rec.Program, "balance", rec.Balance, "id", rec.ID)
	return http.StatusOK, backend.Response{Success: true, Message: fmt.Sprintf("%s: %d synced", program.Name, rec.Balance)}, nil
}

// cooldown returns how long clientID must still wait before syncing program.
func (h *Handler) cooldown(clientID, program string) (time.Duration, error) {
	window := time.Duration(h.cfg.SyncCooldownSec) * time.Second
	if window <= 0 {
		return 0, nil
	}
	last, err := h.db.LastSyncAt(clientID, program)
	if err != nil || last == nil {
		return 0, err
	}
	remaining := last.Add(window).Sub(h.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func waitMessage(wait time.Duration) string {
	return fmt.Sprintf("sync limit reached, try again in %s", wait.Round(time.Second))
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
