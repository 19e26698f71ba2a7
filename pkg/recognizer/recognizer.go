// Package recognizer manages streaming speech recognition sessions.
//
// A [Session] ingests audio in chunks, drives an incremental [Decoder] and
// renders partial and final transcripts as JSON. The acoustic side (feature
// computation, decoding search, graph construction) is provided by an
// [Engine] and the other collaborator interfaces; the session owns the
// utterance life cycle around them:
//
//	Initialized ──AcceptAudio──▶ Running ──Result/Reset──▶ Endpoint
//	                               │  ▲                      │
//	                               │  └──────AcceptAudio─────┘
//	                               └──FinalResult──▶ Finalized ──AcceptAudio──▶ Running
//
// Leaving Endpoint or Finalized recycles the decoder: it is re-armed for
// the next utterance, or rebuilt together with the feature pipeline after
// a final result or once 20000 decoder frames (10 minutes) have gone
// through it.
//
// # Results
//
// With zero alternatives, results are the minimum Bayes risk one-best:
//
//	{"result":[{"conf":1,"end":1.02,"start":0.6,"word":"hello"}],"text":"hello"}
//
// With N alternatives, results are the N best paths:
//
//	{"alternatives":[{"confidence":-12.3,"text":"hello"}, ...]}
//
// Partial results are {"partial":"hello"}.
//
// # Speaker identification
//
// Sessions created with a speaker model also feed every chunk into a
// speaker feature stream. Best-path results then carry the speaker
// embedding ("spk"), the number of speech frames it is based on
// ("spk_frames") and the PLDA score against every enrolled speaker
// ("scores").
package recognizer

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by SetSpkModel while an utterance is
	// being decoded.
	ErrAlreadyRunning = errors.New("recognizer: can't add speaker model to already running recognizer")

	// ErrNoGraph is returned when a model can provide no decoding graph.
	ErrNoGraph = errors.New("recognizer: can't create decoding graph")

	// ErrGrammar is returned when a grammar contains something other than
	// strings.
	ErrGrammar = errors.New("recognizer: expecting array of strings")

	// ErrClosed is returned when a closed session is used.
	ErrClosed = errors.New("recognizer: session closed")
)

// State is the utterance state of a Session.
type State int

const (
	StateInitialized State = iota
	StateRunning
	StateEndpoint
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateEndpoint:
		return "endpoint"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
