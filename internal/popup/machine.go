// Package popup drives the extract-then-confirm sync flow: a pure transition
// function over an explicit State, and a Controller that runs its effects.
package popup

import (
	"time"

	"milesync/internal"
	"milesync/internal/util"
)

type StatusCode string

const (
	StatusNone        StatusCode = ""
	StatusExtracting  StatusCode = "extracting"
	StatusConfirm     StatusCode = "confirm"
	StatusNotLogged   StatusCode = "not_logged"
	StatusWrongPage   StatusCode = "wrong_page"
	StatusNotFound    StatusCode = "not_found"
	StatusAPIError    StatusCode = "api_error"
	StatusRateLimited StatusCode = "rate_limited"
	StatusSynced      StatusCode = "synced"
	StatusRejected    StatusCode = "rejected"
)

// State is everything the popup knows during one open/close lifetime.
type State struct {
	Phase    internal.SyncState
	Loading  bool
	Program  *internal.Program
	URL      string
	Detected *internal.DetectedData
	Status   StatusCode
	Message  string
}

func NewState(program *internal.Program, url string) State {
	return State{Phase: internal.StateIdle, Program: program, URL: url}
}

type Event interface{ isEvent() }

type SyncClicked struct{}

type ExtractionFinished struct {
	Result internal.ExtractionResult
	URL    string
	At     time.Time
}

type ExtractionErrored struct{ Err error }

type ConfirmClicked struct{}

type RejectClicked struct{}

type SyncFinished struct {
	Success     bool
	RateLimited bool
	Message     string
}

type SyncErrored struct{ Err error }

type RetryClicked struct{}

type GoToPageClicked struct{}

func (SyncClicked) isEvent()        {}
func (ExtractionFinished) isEvent() {}
func (ExtractionErrored) isEvent()  {}
func (ConfirmClicked) isEvent()     {}
func (RejectClicked) isEvent()      {}
func (SyncFinished) isEvent()       {}
func (SyncErrored) isEvent()        {}
func (RetryClicked) isEvent()       {}
func (GoToPageClicked) isEvent()    {}

type Effect interface{ isEffect() }

type SetSyncEnabled struct{ Enabled bool }

type RunExtraction struct{ Program internal.Program }

type ShowConfirmation struct{ Data internal.DetectedData }

type ShowStatus struct {
	Code    StatusCode
	Message string
}

type ShowManual struct {
	Program          internal.Program
	ClickInstruction string
}

type SubmitSync struct{ Data internal.DetectedData }

type NavigateTab struct{ URL string }

type ClosePopup struct{}

type SetBadge struct {
	Text  string
	Color string
}

func (SetSyncEnabled) isEffect()   {}
func (RunExtraction) isEffect()    {}
func (ShowConfirmation) isEffect() {}
func (ShowStatus) isEffect()       {}
func (ShowManual) isEffect()       {}
func (SubmitSync) isEffect()       {}
func (NavigateTab) isEffect()      {}
func (ClosePopup) isEffect()       {}
func (SetBadge) isEffect()         {}

const (
	badgeGreen = "#16a34a"
	badgeAmber = "#f59e0b"
	badgeRed   = "#dc2626"
)

// Transition applies ev to s. It is pure: callers execute the returned effects.
// Events that are not valid for the current state leave it unchanged and
// produce no effects.
func Transition(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case SyncClicked:
		return onSyncClicked(s)
	case ExtractionFinished:
		return onExtractionFinished(s, e)
	case ExtractionErrored:
		return onExtractionErrored(s, e)
	case ConfirmClicked:
		return onConfirm(s)
	case RejectClicked:
		return onReject(s)
	case SyncFinished:
		return onSyncFinished(s, e)
	case SyncErrored:
		return onSyncErrored(s, e)
	case RetryClicked:
		if s.Phase != internal.StateManualMode || s.Loading {
			return s, nil
		}
		s.Phase = internal.StateIdle
		s.Status = StatusNone
		s.Message = ""
		return onSyncClicked(s)
	case GoToPageClicked:
		if s.Phase != internal.StateManualMode || s.Program == nil || s.Program.MilesURL == "" {
			return s, nil
		}
		return s, []Effect{NavigateTab{URL: s.Program.MilesURL}, ClosePopup{}}
	}
	return s, nil
}

func onSyncClicked(s State) (State, []Effect) {
	if s.Loading || s.Program == nil {
		return s, nil
	}
	if s.Phase == internal.StateAwaitingConfirmation && s.Detected != nil {
		return s, nil
	}
	if s.Phase == internal.StateExtracting {
		return s, nil
	}

	s.Phase = internal.StateExtracting
	s.Loading = true
	s.Detected = nil
	s.Status = StatusExtracting
	s.Message = ""
	return s, []Effect{
		SetSyncEnabled{Enabled: false},
		ShowStatus{Code: StatusExtracting},
		RunExtraction{Program: *s.Program},
	}
}

func onExtractionFinished(s State, e ExtractionFinished) (State, []Effect) {
	if s.Phase != internal.StateExtracting {
		return s, nil
	}
	s.Loading = false
	r := e.Result

	if r.Success && r.Balance > 0 {
		data := internal.DetectedData{
			Program:     s.Program.Code,
			ProgramName: s.Program.Name,
			Balance:     r.Balance,
			RawText:     r.RawText,
			Confidence:  r.Confidence,
			Score:       r.Score,
			CapturedAt:  e.At.UTC().Format(time.RFC3339),
			URL:         util.FirstNonEmpty(e.URL, s.URL),
		}
		s.Phase = internal.StateAwaitingConfirmation
		s.Detected = &data
		s.Status = StatusConfirm
		return s, []Effect{
			SetSyncEnabled{Enabled: true},
			ShowConfirmation{Data: data},
			SetBadge{Text: "?", Color: badgeAmber},
		}
	}

	s.Phase = internal.StateManualMode
	s.Detected = nil
	s.Status = FailureStatus(r)
	manual := ShowManual{Program: *s.Program}
	if s.Program.RequiresClick {
		manual.ClickInstruction = s.Program.ClickInstruction
	}
	return s, []Effect{
		SetSyncEnabled{Enabled: true},
		ShowStatus{Code: s.Status},
		manual,
	}
}

func onExtractionErrored(s State, e ExtractionErrored) (State, []Effect) {
	if s.Phase != internal.StateExtracting {
		return s, nil
	}
	s.Phase = internal.StateIdle
	s.Loading = false
	s.Detected = nil
	s.Status = StatusAPIError
	s.Message = errText(e.Err)
	return s, []Effect{
		SetSyncEnabled{Enabled: true},
		ShowStatus{Code: StatusAPIError, Message: s.Message},
	}
}

// onConfirm keeps Detected until the backend answers so that the pending
// balance stays the single one in flight; Loading blocks every other edge.
func onConfirm(s State) (State, []Effect) {
	if s.Phase != internal.StateAwaitingConfirmation || s.Detected == nil || s.Loading {
		return s, nil
	}
	s.Loading = true
	return s, []Effect{
		SetSyncEnabled{Enabled: false},
		SubmitSync{Data: *s.Detected},
	}
}

func onReject(s State) (State, []Effect) {
	if s.Phase != internal.StateAwaitingConfirmation || s.Loading {
		return s, nil
	}
	program := *s.Program
	s.Phase = internal.StateManualMode
	s.Detected = nil
	s.Status = StatusRejected
	s.Message = ""
	return s, []Effect{
		ShowStatus{Code: StatusRejected},
		ShowManual{Program: program},
		SetBadge{},
	}
}

func onSyncFinished(s State, e SyncFinished) (State, []Effect) {
	if s.Phase != internal.StateAwaitingConfirmation || !s.Loading {
		return s, nil
	}
	s.Loading = false
	s.Detected = nil

	if e.Success {
		s.Phase = internal.StateSynced
		s.Status = StatusSynced
		s.Message = e.Message
		return s, []Effect{
			SetSyncEnabled{Enabled: true},
			ShowStatus{Code: StatusSynced, Message: e.Message},
			SetBadge{Text: "✓", Color: badgeGreen},
		}
	}

	s.Phase = internal.StateIdle
	s.Status = StatusAPIError
	if e.RateLimited {
		s.Status = StatusRateLimited
	}
	s.Message = e.Message
	return s, []Effect{
		SetSyncEnabled{Enabled: true},
		ShowStatus{Code: s.Status, Message: e.Message},
		SetBadge{Text: "!", Color: badgeRed},
	}
}

func onSyncErrored(s State, e SyncErrored) (State, []Effect) {
	if s.Phase != internal.StateAwaitingConfirmation || !s.Loading {
		return s, nil
	}
	s.Phase = internal.StateIdle
	s.Loading = false
	s.Detected = nil
	s.Status = StatusAPIError
	s.Message = errText(e.Err)
	return s, []Effect{
		SetSyncEnabled{Enabled: true},
		ShowStatus{Code: StatusAPIError, Message: s.Message},
		SetBadge{Text: "!", Color: badgeRed},
	}
}

// FailureStatus picks the most specific explanation for a failed extraction:
// not logged in beats wrong page, which beats a generic miss.
func FailureStatus(r internal.ExtractionResult) StatusCode {
	switch {
	case !r.IsLoggedIn:
		return StatusNotLogged
	case !r.IsBalancePage:
		return StatusWrongPage
	default:
		return StatusNotFound
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
