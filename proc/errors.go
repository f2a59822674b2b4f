package proc

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
)

// Transport errors. Connections wrap or return these so the orchestrator can
// tell a dead call from a bad file.
var (
	ErrNoActiveCall = errors.New("no active call")
	ErrUnavailable  = errors.New("voice server unavailable")
	ErrUnsupported  = errors.New("unsupported stream type")
	ErrFileNotFound = errors.New("media file not found")
	ErrNoAudio      = errors.New("no audio stream")
)

// FatalCallError ends the call. It is never retried.
type FatalCallError struct {
	Chat snowflake.ID
	Err  error
}

func (e *FatalCallError) Error() string {
	return fmt.Sprintf("call %s: %v", e.Chat, e.Err)
}

func (e *FatalCallError) Unwrap() error { return e.Err }

// SkippableMediaError drops the current item and advances the queue.
type SkippableMediaError struct {
	Chat snowflake.ID
	Err  error
}

func (e *SkippableMediaError) Error() string {
	return fmt.Sprintf("skip in %s: %v", e.Chat, e.Err)
}

func (e *SkippableMediaError) Unwrap() error { return e.Err }

// BestEffortUIError is a failed send, edit or delete. It is logged and dropped.
type BestEffortUIError struct {
	Op  string
	Err error
}

func (e *BestEffortUIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BestEffortUIError) Unwrap() error { return e.Err }

type Class int

const (
	ClassNone Class = iota
	ClassFatal
	ClassSkip
	ClassAcquisition
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassSkip:
		return "skip"
	case ClassAcquisition:
		return "acquisition"
	case ClassCanceled:
		return "canceled"
	}
	return "none"
}

// Classify maps any error onto the recovery it calls for. Unknown transport
// errors are fatal.
func Classify(err error) Class {
	var (
		fatal *FatalCallError
		skip  *SkippableMediaError
	)
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.As(err, &skip), errors.Is(err, ErrFileNotFound), errors.Is(err, ErrNoAudio):
		return ClassSkip
	case errors.As(err, &fatal):
		return ClassFatal
	case media.IsAcquisitionError(err):
		return ClassAcquisition
	}
	return ClassFatal
}

// errorKey picks the chat text for a playback failure.
func errorKey(err error) string {
	switch {
	case errors.Is(err, ErrNoActiveCall):
		return "error_no_call"
	case errors.Is(err, ErrUnavailable):
		return "error_unavailable"
	case errors.Is(err, ErrUnsupported):
		return "error_unsupported"
	case errors.Is(err, ErrFileNotFound):
		return "error_file"
	case errors.Is(err, ErrNoAudio):
		return "error_no_audio"
	}
	return "error_play"
}
