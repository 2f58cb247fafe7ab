package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"milesync/internal"
	"milesync/internal/extractor"
	"milesync/internal/popup"
	"milesync/internal/util"
)

// pageTab stands in for the browser tab: the page is read from source and
// reported as living at url.
type pageTab struct {
	url     string
	source  string
	fetcher *extractor.Fetcher
	scorer  *extractor.Scorer
	out     io.Writer
}

func (t *pageTab) URL(context.Context) (string, error) {
	return t.url, nil
}

func (t *pageTab) Extract(ctx context.Context, program internal.Program) (internal.ExtractionResult, error) {
	page, err := t.fetcher.Load(ctx, t.source, program)
	if err != nil {
		return internal.ExtractionResult{}, err
	}
	return t.scorer.Extract(page, program), nil
}

func (t *pageTab) Navigate(_ context.Context, url string) error {
	fmt.Fprintf(t.out, "open %s in your browser, log in and run sync again\n", url)
	return nil
}

var statusText = map[popup.StatusCode]string{
	popup.StatusExtracting:  "reading balance from the current page...",
	popup.StatusNotLogged:   "you do not seem to be logged in on this page",
	popup.StatusWrongPage:   "this page does not show your balance",
	popup.StatusNotFound:    "no balance found on this page",
	popup.StatusAPIError:    "could not reach the sync service",
	popup.StatusRateLimited: "too many syncs, try again later",
	popup.StatusSynced:      "balance synced",
	popup.StatusRejected:    "detected balance discarded",
}

type terminalView struct {
	out    io.Writer
	closed bool
}

func (v *terminalView) SetSyncEnabled(bool) {}

func (v *terminalView) ShowStatus(code popup.StatusCode, message string) {
	text := statusText[code]
	if text == "" {
		text = string(code)
	}
	if message != "" {
		text += ": " + message
	}
	fmt.Fprintf(v.out, "[%s] %s\n", code, text)
}

func (v *terminalView) ShowConfirmation(data internal.DetectedData) {
	fmt.Fprintf(v.out, "%s balance: %s (confidence %s, score %d)\n",
		data.ProgramName, util.FormatGroupedInt(data.Balance), data.Confidence, data.Score)
}

func (v *terminalView) ShowManual(program internal.Program, clickInstruction string) {
	if clickInstruction != "" {
		fmt.Fprintf(v.out, "tip: %s\n", clickInstruction)
	}
	fmt.Fprintf(v.out, "[r] retry on this page  [g] go to %s  [q] quit\n", program.MilesURL)
}

func (v *terminalView) SetBadge(text, _ string) {
	if text != "" {
		fmt.Fprintf(v.out, "badge: %s\n", text)
	}
}

func (v *terminalView) Close() {
	v.closed = true
}

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *prompter) ask(question string) string {
	fmt.Fprintf(p.out, "%s ", question)
	if !p.in.Scan() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(p.in.Text()))
}

// runSync drives one popup session on the terminal.
func runSync(ctx context.Context, ctrl *popup.Controller, view *terminalView, p *prompter, token string) error {
	screen, err := ctrl.Open(ctx)
	if err != nil {
		return err
	}

	for screen != popup.ScreenMain {
		switch screen {
		case popup.ScreenConsent:
			if p.ask("allow milesync to store your loyalty balances? [y/n]") != "y" {
				return fmt.Errorf("consent declined")
			}
			screen, err = ctrl.AcceptConsent(ctx)
		case popup.ScreenLogin:
			if token == "" {
				token = p.ask("access token:")
			}
			if token == "" {
				return fmt.Errorf("login required")
			}
			screen, err = ctrl.Login(ctx, token)
			if err == nil && screen == popup.ScreenLogin {
				return fmt.Errorf("login rejected")
			}
			token = ""
		case popup.ScreenUnsupported:
			return fmt.Errorf("this site is not a supported loyalty program")
		default:
			return fmt.Errorf("unexpected screen %q", screen)
		}
		if err != nil {
			return err
		}
	}

	ctrl.Dispatch(ctx, popup.SyncClicked{})
	for !view.closed {
		state := ctrl.State()
		switch state.Phase {
		case internal.StateAwaitingConfirmation:
			if p.ask("is this your balance? [y/n]") == "y" {
				ctrl.Dispatch(ctx, popup.ConfirmClicked{})
			} else {
				ctrl.Dispatch(ctx, popup.RejectClicked{})
			}
		case internal.StateManualMode:
			switch p.ask(">") {
			case "r":
				ctrl.Dispatch(ctx, popup.RetryClicked{})
			case "g":
				ctrl.Dispatch(ctx, popup.GoToPageClicked{})
			default:
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}
