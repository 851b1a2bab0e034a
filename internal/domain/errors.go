package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a feed produced no (or no usable) data.
type ErrorKind int

const (
	KindBadURL ErrorKind = iota + 1
	KindRequestFailed
	KindInvalidStatus
	KindDecodingFailed
	KindParsingFailed
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadURL:
		return "bad_url"
	case KindRequestFailed:
		return "request_failed"
	case KindInvalidStatus:
		return "invalid_status"
	case KindDecodingFailed:
		return "decoding_failed"
	case KindParsingFailed:
		return "parsing_failed"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is against a *FeedError of the matching kind.
var (
	ErrBadURL         = errors.New("bad url")
	ErrRequestFailed  = errors.New("request failed")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrDecodingFailed = errors.New("decoding failed")
	ErrParsingFailed  = errors.New("parsing failed")
	ErrTimeout        = errors.New("timeout")
)

var kindSentinels = map[ErrorKind]error{
	KindBadURL:         ErrBadURL,
	KindRequestFailed:  ErrRequestFailed,
	KindInvalidStatus:  ErrInvalidStatus,
	KindDecodingFailed: ErrDecodingFailed,
	KindParsingFailed:  ErrParsingFailed,
	KindTimeout:        ErrTimeout,
}

// FeedError is the classified failure attached to one FeedResult.
type FeedError struct {
	Kind   ErrorKind
	Feed   FeedID
	Status int // HTTP status for KindInvalidStatus
	Err    error
}

// NewFeedError builds a FeedError of the given kind.
func NewFeedError(kind ErrorKind, feed FeedID, err error) *FeedError {
	return &FeedError{Kind: kind, Feed: feed, Err: err}
}

func (e *FeedError) Error() string {
	msg := fmt.Sprintf("feed %s: %s", e.Feed, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FeedError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *FeedError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of a classified error, or 0 when err is nil or not
// a *FeedError.
func KindOf(err error) ErrorKind {
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
