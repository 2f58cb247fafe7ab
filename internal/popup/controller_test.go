package popup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milesync/internal"
	"milesync/internal/backend"
	"milesync/internal/backend/mocks"
	"milesync/internal/programs"
)

type fakeTab struct {
	url       string
	result    internal.ExtractionResult
	err       error
	started   chan struct{}
	release   chan struct{}
	calls     atomic.Int32
	navigated []string
}

func (f *fakeTab) URL(context.Context) (string, error) { return f.url, nil }

func (f *fakeTab) Extract(ctx context.Context, _ internal.Program) (internal.ExtractionResult, error) {
	f.calls.Add(1)
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func (f *fakeTab) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

type recordingView struct {
	mu       sync.Mutex
	statuses []StatusCode
	confirms []internal.DetectedData
	manual   int
	badges   []string
	closed   bool
}

func (v *recordingView) SetSyncEnabled(bool) {}

func (v *recordingView) ShowStatus(code StatusCode, _ string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, code)
}

func (v *recordingView) ShowConfirmation(data internal.DetectedData) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirms = append(v.confirms, data)
}

func (v *recordingView) ShowManual(internal.Program, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.manual++
}

func (v *recordingView) SetBadge(text, _ string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.badges = append(v.badges, text)
}

func (v *recordingView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *recordingView) lastStatus() StatusCode {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.statuses) == 0 {
		return StatusNone
	}
	return v.statuses[len(v.statuses)-1]
}

type harness struct {
	client *mocks.MockClient
	tab    *fakeTab
	view   *recordingView
	ctrl   *Controller
}

func newHarness(t *testing.T, url string) *harness {
	t.Helper()
	mockCtrl := gomock.NewController(t)
	h := &harness{
		client: mocks.NewMockClient(mockCtrl),
		tab:    &fakeTab{url: url, result: successResult()},
		view:   &recordingView{},
	}
	h.ctrl = NewController(h.client, h.tab, h.view, programs.Default(), nil)
	return h
}

func (h *harness) openMain(t *testing.T) {
	t.Helper()
	h.client.EXPECT().CheckConsent(gomock.Any()).Return(true, nil)
	h.client.EXPECT().CheckAuth(gomock.Any()).Return(true, nil)
	screen, err := h.ctrl.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, ScreenMain, screen)
}

func TestOpenScreens(t *testing.T) {
	ctx := context.Background()

	t.Run("consent first", func(t *testing.T) {
		h := newHarness(t, "https://www.livelo.com.br/")
		h.client.EXPECT().CheckConsent(gomock.Any()).Return(false, nil)
		screen, err := h.ctrl.Open(ctx)
		require.NoError(t, err)
		assert.Equal(t, ScreenConsent, screen)
	})

	t.Run("login when unauthenticated", func(t *testing.T) {
		h := newHarness(t, "https://www.livelo.com.br/")
		h.client.EXPECT().CheckConsent(gomock.Any()).Return(true, nil)
		h.client.EXPECT().CheckAuth(gomock.Any()).Return(false, nil)
		screen, err := h.ctrl.Open(ctx)
		require.NoError(t, err)
		assert.Equal(t, ScreenLogin, screen)
	})

	t.Run("unsupported site", func(t *testing.T) {
		h := newHarness(t, "https://example.com/")
		h.client.EXPECT().CheckConsent(gomock.Any()).Return(true, nil)
		h.client.EXPECT().CheckAuth(gomock.Any()).Return(true, nil)
		screen, err := h.ctrl.Open(ctx)
		require.NoError(t, err)
		assert.Equal(t, ScreenUnsupported, screen)
	})

	t.Run("backend error", func(t *testing.T) {
		h := newHarness(t, "https://www.livelo.com.br/")
		h.client.EXPECT().CheckConsent(gomock.Any()).Return(false, backend.ErrBackend)
		_, err := h.ctrl.Open(ctx)
		assert.ErrorIs(t, err, backend.ErrBackend)
	})

	t.Run("main resets state", func(t *testing.T) {
		h := newHarness(t, "https://www.livelo.com.br/")
		h.openMain(t)
		s := h.ctrl.State()
		assert.Equal(t, internal.StateIdle, s.Phase)
		require.NotNil(t, s.Program)
		assert.Equal(t, "LIVELO", s.Program.Code)
	})
}

func TestAcceptConsentAndLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "https://www.smiles.com.br/")

	gomock.InOrder(
		h.client.EXPECT().SetConsent(gomock.Any(), true).Return(nil),
		h.client.EXPECT().CheckConsent(gomock.Any()).Return(true, nil),
		h.client.EXPECT().CheckAuth(gomock.Any()).Return(false, nil),
	)
	screen, err := h.ctrl.AcceptConsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScreenLogin, screen)

	gomock.InOrder(
		h.client.EXPECT().SetAuth(gomock.Any(), "tok").Return(nil),
		h.client.EXPECT().CheckConsent(gomock.Any()).Return(true, nil),
		h.client.EXPECT().CheckAuth(gomock.Any()).Return(true, nil),
	)
	screen, err = h.ctrl.Login(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, ScreenMain, screen)

	h.client.EXPECT().Logout(gomock.Any()).Return(nil)
	screen, err = h.ctrl.Logout(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScreenLogin, screen)
	assert.Nil(t, h.ctrl.State().Program)
}

func TestSyncFlowConfirmAndSubmit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "https://www.livelo.com.br/extrato")
	h.openMain(t)

	h.ctrl.Dispatch(ctx, SyncClicked{})
	s := h.ctrl.State()
	require.Equal(t, internal.StateAwaitingConfirmation, s.Phase)
	require.Len(t, h.view.confirms, 1)
	assert.Equal(t, 45230, h.view.confirms[0].Balance)
	assert.Equal(t, "https://www.livelo.com.br/extrato", h.view.confirms[0].URL)

	gomock.InOrder(
		h.client.EXPECT().CheckRateLimit(gomock.Any(), "LIVELO").Return(backend.RateLimit{Allowed: true}, nil),
		h.client.EXPECT().SyncMiles(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, data internal.DetectedData) (backend.SyncResult, error) {
				assert.Equal(t, "LIVELO", data.Program)
				assert.Equal(t, 45230, data.Balance)
				return backend.SyncResult{Success: true, Message: "saved"}, nil
			}),
	)
	h.ctrl.Dispatch(ctx, ConfirmClicked{})

	s = h.ctrl.State()
	assert.Equal(t, internal.StateSynced, s.Phase)
	assert.Nil(t, s.Detected)
	assert.Equal(t, StatusSynced, h.view.lastStatus())
	assert.Empty(t, h.tab.navigated)
}

func TestSyncRateLimitedSkipsSubmit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "https://www.livelo.com.br/")
	h.openMain(t)
	h.ctrl.Dispatch(ctx, SyncClicked{})

	h.client.EXPECT().CheckRateLimit(gomock.Any(), "LIVELO").Return(backend.RateLimit{Allowed: false, Message: "wait 5 minutes"}, nil)
	h.ctrl.Dispatch(ctx, ConfirmClicked{})

	s := h.ctrl.State()
	assert.Equal(t, internal.StateIdle, s.Phase)
	assert.Equal(t, StatusRateLimited, s.Status)
	assert.Equal(t, "wait 5 minutes", s.Message)
	assert.Nil(t, s.Detected)
}

func TestSyncBackendFailureRevertsToIdle(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		err    error
		status StatusCode
	}{
		{"transport", fmt.Errorf("%w: connection refused", backend.ErrBackend), StatusAPIError},
		{"unauthorized", backend.ErrUnauthorized, StatusAPIError},
		{"server rate limit", fmt.Errorf("%w: slow down", backend.ErrRateLimited), StatusRateLimited},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, "https://www.livelo.com.br/")
			h.openMain(t)
			h.ctrl.Dispatch(ctx, SyncClicked{})

			h.client.EXPECT().CheckRateLimit(gomock.Any(), gomock.Any()).Return(backend.RateLimit{Allowed: true}, nil)
			h.client.EXPECT().SyncMiles(gomock.Any(), gomock.Any()).Return(backend.SyncResult{}, tc.err)
			h.ctrl.Dispatch(ctx, ConfirmClicked{})

			s := h.ctrl.State()
			assert.Equal(t, internal.StateIdle, s.Phase)
			assert.Equal(t, tc.status, s.Status)
			assert.Nil(t, s.Detected)
		})
	}
}

func TestDoubleClickRunsOneExtraction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "https://www.livelo.com.br/")
	h.openMain(t)
	h.tab.started = make(chan struct{})
	h.tab.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ctrl.Dispatch(ctx, SyncClicked{})
	}()

	<-h.tab.started
	h.ctrl.Dispatch(ctx, SyncClicked{})
	close(h.tab.release)
	<-done

	assert.Equal(t, int32(1), h.tab.calls.Load())
	assert.Equal(t, internal.StateAwaitingConfirmation, h.ctrl.State().Phase)
}

func TestNotLoggedStatusWinsOverWrongPage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "https://www.livelo.com.br/")
	h.openMain(t)
	h.tab.result = internal.ExtractionResult{Error: internal.ErrNoCandidates, Program: "livelo"}

	h.ctrl.Dispatch(ctx, SyncClicked{})

	s := h.ctrl.State()
	assert.Equal(t, internal.StateManualMode, s.Phase)
	assert.Equal(t, StatusNotLogged, s.Status)
	assert.Equal(t, 1, h.view.manual)
	assert.Empty(t, h.tab.navigated)
}

func TestExtractionErrorShowsAPIError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "https://www.livelo.com.br/")
	h.openMain(t)
	h.tab.err = errors.New("script injection failed")

	h.ctrl.Dispatch(ctx, SyncClicked{})

	s := h.ctrl.State()
	assert.Equal(t, internal.StateIdle, s.Phase)
	assert.Equal(t, StatusAPIError, s.Status)
	assert.False(t, s.Loading)
}

func TestGoToPageNavigatesAndCloses(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "https://www.livelo.com.br/")
	h.openMain(t)
	h.tab.result = internal.ExtractionResult{Error: internal.ErrNoCandidates, IsLoggedIn: true, Program: "livelo"}

	h.ctrl.Dispatch(ctx, GoToPageClicked{})
	assert.Empty(t, h.tab.navigated, "navigation before manual mode")

	h.ctrl.Dispatch(ctx, SyncClicked{})
	require.Equal(t, internal.StateManualMode, h.ctrl.State().Phase)

	h.ctrl.Dispatch(ctx, GoToPageClicked{})
	assert.Equal(t, []string{"https://www.livelo.com.br/minha-conta"}, h.tab.navigated)
	assert.True(t, h.view.closed)
}
