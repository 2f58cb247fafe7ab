package internal

import "regexp"

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type ExtractionError string

const (
	ErrNoCandidates  ExtractionError = "no_candidates"
	ErrLowConfidence ExtractionError = "low_confidence"
)

type SyncState string

const (
	StateIdle                 SyncState = "IDLE"
	StateExtracting           SyncState = "EXTRACTING"
	StateAwaitingConfirmation SyncState = "AWAITING_CONFIRMATION"
	StateManualMode           SyncState = "MANUAL_MODE"
	StateSynced               SyncState = "SYNCED"
)

// ProgramRules are the per-program scoring hints used by the extractor.
type ProgramRules struct {
	TargetSelector    string
	TargetBonus       int
	ContextPattern    *regexp.Regexp
	ContextBonus      int
	LoggedInSelectors []string
}

type Program struct {
	Name             string
	Code             string
	Key              string
	Icon             string
	MilesURL         string
	Hosts            []string
	RequiresClick    bool
	ClickInstruction string
	Rules            ProgramRules
}

type Candidate struct {
	Value   int    `json:"value"`
	RawText string `json:"rawText"`
	Score   int    `json:"score"`
	Tag     string `json:"tag"`
}

type ExtractionResult struct {
	Success         bool            `json:"success"`
	Balance         int             `json:"balance,omitempty"`
	RawText         string          `json:"rawText,omitempty"`
	Score           int             `json:"score,omitempty"`
	Confidence      Confidence      `json:"confidence,omitempty"`
	IsBalancePage   bool            `json:"isBalancePage"`
	IsLoggedIn      bool            `json:"isLoggedIn"`
	CandidatesCount int             `json:"candidatesCount,omitempty"`
	Program         string          `json:"program"`
	Error           ExtractionError `json:"error,omitempty"`
	BestScore       *int            `json:"bestScore,omitempty"`
	BestValue       *int            `json:"bestValue,omitempty"`
}

// DetectedData is a balance waiting for the user's confirmation.
type DetectedData struct {
	Program     string     `json:"program"`
	ProgramName string     `json:"programName"`
	Balance     int        `json:"balance"`
	RawText     string     `json:"rawText"`
	Confidence  Confidence `json:"confidence"`
	Score       int        `json:"score"`
	CapturedAt  string     `json:"captured_at"`
	URL         string     `json:"url"`
}

type SyncRecord struct {
	ID         int
	ClientID   string
	Program    string
	Balance    int
	RawText    string
	Confidence string
	Score      int
	CapturedAt string
	URL        string
	SyncedAt   string
}
