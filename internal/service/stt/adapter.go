// Package stt defines the speech-recognition primitive consumed by capture.
//
// A Recognizer runs one utterance at a time: it reports interim and final
// hypotheses, then ends on its own after the utterance pause. Continuous
// listening is built on top of it by the capture package.
package stt

import (
	"context"
	"errors"
	"fmt"
)

// Config configures one recognizer run.
type Config struct {
	LanguageCode   string
	Continuous     bool
	InterimResults bool
}

// Result is one result slot of a recognition event.
type Result struct {
	Transcript string
	IsFinal    bool
	Confidence float64
}

// ResultEvent carries the recognizer's result slots. Slots before ResultIndex
// were already reported by earlier events.
type ResultEvent struct {
	ResultIndex int
	Results     []Result
}

// Sink receives recognizer events. Implementations must not block.
type Sink interface {
	// OnResult is called for every batch of interim/final hypotheses.
	OnResult(ev ResultEvent)

	// OnEnd is called once when the run has ended, for any reason.
	OnEnd()

	// OnError is called when the run failed. OnEnd may still follow.
	OnError(err error)
}

// Recognizer is the platform speech-recognition capability.
type Recognizer interface {
	// Available probes whether recognition can be started at all.
	Available() bool

	// Start begins one run delivering events to sink.
	Start(ctx context.Context, cfg Config, sink Sink) error

	// Stop asks the current run to finish its utterance and end.
	Stop() error

	// Abort cancels the current run immediately.
	Abort() error
}

// ErrorCode classifies recognizer failures.
type ErrorCode string

const (
	CodeNoSpeech           ErrorCode = "no-speech"
	CodeAudioCapture       ErrorCode = "audio-capture"
	CodeNotAllowed         ErrorCode = "not-allowed"
	CodeNetwork            ErrorCode = "network"
	CodeAborted            ErrorCode = "aborted"
	CodeServiceUnavailable ErrorCode = "service-unavailable"
)

// Error is a recognizer failure with its code.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition error: %s", e.Code)
	}
	return fmt.Sprintf("recognition error: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err, defaulting to CodeServiceUnavailable.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeServiceUnavailable
}
