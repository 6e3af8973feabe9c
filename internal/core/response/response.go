// Package response accumulates the log of a single query together with its
// overall status. Entries are mirrored to the structured logger.
package response

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/expand/internal/logger"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

type Message struct {
	Level Level     `json:"level"`
	Code  string    `json:"code,omitempty"`
	Text  string    `json:"message"`
	Time  time.Time `json:"timestamp"`
}

// Response is safe for concurrent use.
type Response struct {
	ID string

	mu        sync.Mutex
	status    string
	errorCode string
	messages  []Message
	log       *logger.Logger
}

// New returns a response in the OK state. A nil logger discards mirrored entries.
func New(log *logger.Logger) *Response {
	if log == nil {
		log = logger.NewNop()
	}
	id := uuid.NewString()
	return &Response{
		ID:     id,
		status: StatusOK,
		log:    log.With("request_id", id),
	}
}

func (r *Response) Debug(msg string) {
	r.add(LevelDebug, "", msg)
	r.log.Debug(msg)
}

func (r *Response) Info(msg string) {
	r.add(LevelInfo, "", msg)
	r.log.Info(msg)
}

func (r *Response) Warning(msg string) {
	r.add(LevelWarning, "", msg)
	r.log.Warn(msg)
}

// Error records msg and moves the response into the ERROR state. The first
// error code is kept.
func (r *Response) Error(msg, code string) {
	r.mu.Lock()
	r.status = StatusError
	if r.errorCode == "" {
		r.errorCode = code
	}
	r.messages = append(r.messages, Message{Level: LevelError, Code: code, Text: msg, Time: time.Now().UTC()})
	r.mu.Unlock()
	r.log.Error(msg, "code", code)
}

func (r *Response) add(level Level, code, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Code: code, Text: msg, Time: time.Now().UTC()})
}

func (r *Response) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Response) OK() bool {
	return r.Status() == StatusOK
}

func (r *Response) ErrorCode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCode
}

// Messages returns a copy of the recorded entries in order.
func (r *Response) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// MessagesAt returns entries at the given level or above.
func (r *Response) MessagesAt(min Level) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if rank(m.Level) >= rank(min) {
			out = append(out, m)
		}
	}
	return out
}

// Absorb copies other's entries and error state into r.
func (r *Response) Absorb(other *Response) {
	if other == nil || other == r {
		return
	}
	msgs := other.Messages()
	status, code := other.Status(), other.ErrorCode()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msgs...)
	if status == StatusError {
		r.status = StatusError
		if r.errorCode == "" {
			r.errorCode = code
		}
	}
}

func rank(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	default:
		return 3
	}
}
