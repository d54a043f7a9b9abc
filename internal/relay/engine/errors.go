package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chatrelay/chatrelay/internal/relay/imagequeue"
	"github.com/chatrelay/chatrelay/internal/relay/upstream"
)

// Kind is the failure taxonomy surfaced to the transport layer.
type Kind string

const (
	KindRateLimited       Kind = "rate_limited"
	KindAlreadyBusy       Kind = "already_busy"
	KindUpstreamTransient Kind = "upstream_transient"
	KindUpstreamRejected  Kind = "upstream_rejected"
	KindUpstreamMalformed Kind = "upstream_malformed"
	KindEmptyResponse     Kind = "empty_response"
	KindTimeout           Kind = "timeout"
	KindUnknown           Kind = "unknown"
)

// Error is a typed failure. UserMessage is safe to render verbatim;
// raw upstream bodies never leak into it.
type Error struct {
	Kind         Kind
	UserMessage  string
	ResetAt      time.Time
	BlockedUntil time.Time
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a relay error of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

// classify maps an internal failure onto the taxonomy with user-facing
// guidance attached.
func classify(err error) *Error {
	if err == nil {
		return nil
	}

	var re *Error
	if errors.As(err, &re) {
		return re
	}

	if errors.Is(err, imagequeue.ErrDuplicateJob) {
		return &Error{Kind: KindAlreadyBusy, UserMessage: msgAlreadyBusy, Err: err}
	}
	if errors.Is(err, imagequeue.ErrShuttingDown) {
		return &Error{Kind: KindUnknown, UserMessage: msgShuttingDown, Err: err}
	}

	var exhausted *upstream.ExhaustedError
	if errors.As(err, &exhausted) {
		inner := classify(exhausted.Last)
		// Exhaustion of retryable failures consolidates to a single
		// transient error; keep the more specific kinds when the last
		// attempt pins one down.
		switch inner.Kind {
		case KindUpstreamMalformed, KindEmptyResponse, KindTimeout:
			inner.Err = err
			return inner
		default:
			return &Error{Kind: KindUpstreamTransient, UserMessage: msgTransient, Err: err}
		}
	}

	var perr *upstream.ProviderError
	if errors.As(err, &perr) {
		if perr.Retryable() {
			return &Error{Kind: KindUpstreamTransient, UserMessage: msgTransient, Err: err}
		}
		return &Error{Kind: KindUpstreamRejected, UserMessage: rejectionGuidance(perr.StatusCode), Err: err}
	}

	var merr *upstream.MalformedError
	if errors.As(err, &merr) {
		return &Error{Kind: KindUpstreamMalformed, UserMessage: msgMalformed, Err: err}
	}

	if errors.Is(err, upstream.ErrNoContent) {
		return &Error{Kind: KindEmptyResponse, UserMessage: msgEmpty, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, UserMessage: msgTimeout, Err: err}
	}

	return &Error{Kind: KindUnknown, UserMessage: fmt.Sprintf(msgUnknownFmt, err.Error()), Err: err}
}

// User-facing guidance. Raw upstream bodies stay out of these.
const (
	msgAlreadyBusy  = "Your previous request is still being processed. Please wait for it to finish."
	msgShuttingDown = "The relay is restarting. Please try again in a minute."
	msgTransient    = "The assistant is temporarily unavailable. Please try again in a moment."
	msgMalformed    = "The assistant returned an unexpected reply. Please try again."
	msgEmpty        = "The assistant returned an empty reply. Please rephrase and try again."
	msgTimeout      = "The request took too long and was abandoned. Please try again."
	msgUnknownFmt   = "Something went wrong: %s"
)

func rejectionGuidance(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "The relay cannot authorize with the completion service. An administrator has been notified."
	case http.StatusForbidden:
		return "The completion service is not available right now."
	default:
		return "The completion service rejected the request. Please try again later."
	}
}

func rateLimitedMessage(v verdictInfo) string {
	if !v.BlockedUntil.IsZero() {
		return fmt.Sprintf("You have been sending too many requests and are paused until %s.",
			v.BlockedUntil.UTC().Format("15:04:05 MST"))
	}
	return fmt.Sprintf("You're sending requests too quickly. Try again after %s.",
		v.ResetAt.UTC().Format("15:04:05 MST"))
}

type verdictInfo struct {
	ResetAt      time.Time
	BlockedUntil time.Time
}
