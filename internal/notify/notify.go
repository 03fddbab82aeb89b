// Package notify is the single surface through which user-visible outcomes are reported.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"storefront/internal/logging"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is one toast/modal message.
type Notification struct {
	Level   Level
	Message string
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Success and Error are shorthands for the common cases.
func Success(ctx context.Context, n Notifier, msg string) {
	n.Notify(ctx, Notification{Level: LevelSuccess, Message: msg})
}

func Error(ctx context.Context, n Notifier, msg string) {
	n.Notify(ctx, Notification{Level: LevelError, Message: msg})
}

type logNotifier struct {
	logger *zap.Logger
}

// NewLog returns a Notifier that writes notifications to a zap logger.
func NewLog(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logging.OrNop(logger).Named("notify")}
}

func (l *logNotifier) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{zap.String("level", n.Level.String())}
	if n.Level == LevelError {
		l.logger.Warn(n.Message, fields...)
		return
	}
	l.logger.Info(n.Message, fields...)
}

// Recorder keeps every notification in memory. It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification and whether there was one.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}
