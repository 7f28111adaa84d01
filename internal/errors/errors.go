package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeResourceExhausted  = Code(codes.ResourceExhausted)
	CodePermissionDenied   = Code(codes.PermissionDenied)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusConflict,
	CodeResourceExhausted:  http.StatusConflict,
	CodePermissionDenied:   http.StatusForbidden,
	CodeUnavailable:        http.StatusBadGateway,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

// Reasons identify a specific failure independently of its code and message.
const (
	ReasonRoomNotFound         = "ROOM_NOT_FOUND"
	ReasonRoomFull             = "ROOM_FULL"
	ReasonAlreadyJoined        = "ALREADY_JOINED"
	ReasonPlayerNotInRoom      = "PLAYER_NOT_IN_ROOM"
	ReasonNoActivePuzzle       = "NO_ACTIVE_PUZZLE"
	ReasonHintsExhausted       = "HINTS_EXHAUSTED"
	ReasonSessionFinished      = "SESSION_FINISHED"
	ReasonSessionPaused        = "SESSION_PAUSED"
	ReasonSessionNotFound      = "SESSION_NOT_FOUND"
	ReasonDocumentNotFound     = "DOCUMENT_NOT_FOUND"
	ReasonUpstreamFetchFailure = "UPSTREAM_FETCH_FAILURE"
	ReasonDecryptionFailure    = "DECRYPTION_FAILURE"
	ReasonPersistenceFailure   = "PERSISTENCE_FAILURE"
)

// Sentinels for errors.Is. Matching is done on Reason only, so an error carrying
// a more specific message still matches its sentinel.
var (
	ErrRoomNotFound         = New(CodeNotFound, WithReason(ReasonRoomNotFound), WithMessagef("room not found"))
	ErrRoomFull             = New(CodeResourceExhausted, WithReason(ReasonRoomFull), WithMessagef("room is full"))
	ErrAlreadyJoined        = New(CodeAlreadyExists, WithReason(ReasonAlreadyJoined), WithMessagef("already in room"))
	ErrPlayerNotInRoom      = New(CodePermissionDenied, WithReason(ReasonPlayerNotInRoom), WithMessagef("player not in room"))
	ErrNoActivePuzzle       = New(CodeFailedPrecondition, WithReason(ReasonNoActivePuzzle), WithMessagef("no active puzzle"))
	ErrHintsExhausted       = New(CodeFailedPrecondition, WithReason(ReasonHintsExhausted), WithMessagef("no hints remaining"))
	ErrSessionFinished      = New(CodeFailedPrecondition, WithReason(ReasonSessionFinished), WithMessagef("session is finished"))
	ErrSessionPaused        = New(CodeFailedPrecondition, WithReason(ReasonSessionPaused), WithMessagef("session is paused"))
	ErrSessionNotFound      = New(CodeNotFound, WithReason(ReasonSessionNotFound), WithMessagef("session not found"))
	ErrDocumentNotFound     = New(CodeNotFound, WithReason(ReasonDocumentNotFound), WithMessagef("document not found"))
	ErrUpstreamFetchFailure = New(CodeUnavailable, WithReason(ReasonUpstreamFetchFailure), WithMessagef("puzzle source unavailable"))
	ErrDecryptionFailure    = New(CodeInternal, WithReason(ReasonDecryptionFailure), WithMessagef("cannot decrypt cached solution"))
	ErrPersistenceFailure   = New(CodeUnavailable, WithReason(ReasonPersistenceFailure), WithMessagef("persistence failed"))
)

type Error struct {
	Code    Code   `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

// From copies a sentinel and applies the options on the copy.
func From(sentinel *Error, opts ...Option) *Error {
	e := *sentinel
	for _, opt := range opts {
		opt.apply(&e)
	}

	return &e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Reason != "" {
		s += fmt.Sprintf(", reason: %s", e.Reason)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Reason == "" {
		return false
	}

	return t.Reason == e.Reason
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithReason(reason string) Option {
	return optionFunc(func(e *Error) {
		e.Reason = reason
	})
}
