package ablytest

import (
	"fmt"
	"sync"

	"github.com/ably/ably-rest-go/ably"
)

type LogMessage struct {
	Level   ably.LogLevel
	Message string
}

// NewLogger gives a logger sending every line it is given to messages.
func NewLogger(messages chan<- LogMessage) ably.Logger {
	return testLogger{messages: messages}
}

type testLogger struct {
	messages chan<- LogMessage
}

func (l testLogger) Print(level ably.LogLevel, v ...interface{}) {
	l.messages <- LogMessage{
		Level:   level,
		Message: fmt.Sprint(v...),
	}
}

func (l testLogger) Printf(level ably.LogLevel, format string, v ...interface{}) {
	l.messages <- LogMessage{
		Level:   level,
		Message: fmt.Sprintf(format, v...),
	}
}

// RecordingLogger keeps every line it is given. It never blocks.
type RecordingLogger struct {
	mtx      sync.Mutex
	messages []LogMessage
}

func (l *RecordingLogger) Print(level ably.LogLevel, v ...interface{}) {
	l.append(level, fmt.Sprint(v...))
}

func (l *RecordingLogger) Printf(level ably.LogLevel, format string, v ...interface{}) {
	l.append(level, fmt.Sprintf(format, v...))
}

func (l *RecordingLogger) append(level ably.LogLevel, msg string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: msg})
}

// Messages gives the recorded lines of the given level, or of every level
// if none is given.
func (l *RecordingLogger) Messages(levels ...ably.LogLevel) []LogMessage {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	var out []LogMessage
	for _, m := range l.messages {
		if len(levels) == 0 || containsLevel(levels, m.Level) {
			out = append(out, m)
		}
	}
	return out
}

func containsLevel(levels []ably.LogLevel, level ably.LogLevel) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

var DiscardLogger ably.Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Print(level ably.LogLevel, v ...interface{}) {}

func (discardLogger) Printf(level ably.LogLevel, format string, v ...interface{}) {}
