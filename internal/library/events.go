package library

import (
	"context"
	"fmt"
)

// Level classifies a scan event.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Event is one entry in the ordered progress stream a scan produces.
// Per-item failures are reported here rather than as returned errors, so a
// partial batch still commits the items that succeeded.
type Event struct {
	Level   Level
	Message string
}

// reporter writes events to the caller's channel. Sends are synchronous:
// a scan makes no progress unless the caller drains the stream. A
// cancelled context unblocks any pending send.
type reporter struct {
	ctx context.Context
	ch  chan<- Event
}

func (r reporter) send(level Level, format string, args ...any) {
	select {
	case r.ch <- Event{level, fmt.Sprintf(format, args...)}:
	case <-r.ctx.Done():
	}
}

func (r reporter) debugf(format string, args ...any) {
	r.send(LevelDebug, format, args...)
}

func (r reporter) infof(format string, args ...any) {
	r.send(LevelInfo, format, args...)
}

func (r reporter) successf(format string, args ...any) {
	r.send(LevelSuccess, format, args...)
}

func (r reporter) errorf(format string, args ...any) {
	r.send(LevelError, format, args...)
}
