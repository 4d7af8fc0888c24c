package astimux

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asticode/go-astikit"
)

// EventLogger writes messages to a logger, optionally merging repeated
// messages over a period to avoid flooding
type EventLogger struct {
	cancel               context.CancelFunc
	ctx                  context.Context
	is                   map[string]*eventLoggerItem // Indexed by key
	l                    astikit.CompleteLogger
	m                    *sync.Mutex // Locks is
	messageMergingPeriod time.Duration
}

type eventLoggerItem struct {
	count     int
	createdAt time.Time
	key       string
	ll        astikit.LoggerLevel
	msg       string
}

func newEventLoggerItem(key, msg string, ll astikit.LoggerLevel) *eventLoggerItem {
	return &eventLoggerItem{
		createdAt: time.Now(),
		key:       key,
		ll:        ll,
		msg:       msg,
	}
}

// WithMessageMerging merges repeated messages over the provided period
func WithMessageMerging(period time.Duration) EventHandlerLogAdapter {
	return func(_ *EventHandler, l *EventLogger) {
		l.messageMergingPeriod = period
	}
}

func newEventLogger(i astikit.StdLogger) *EventLogger {
	return &EventLogger{
		is: make(map[string]*eventLoggerItem),
		l:  astikit.AdaptStdLogger(i),
		m:  &sync.Mutex{},
	}
}

// Start starts the event logger
func (l *EventLogger) Start(ctx context.Context) *EventLogger {
	// Create context
	l.ctx, l.cancel = context.WithCancel(ctx)

	// No need to start anything
	if l.messageMergingPeriod == 0 {
		return l
	}

	// Execute in a goroutine since this is blocking
	go func() {
		// Create ticker
		t := time.NewTicker(200 * time.Millisecond)
		defer t.Stop()

		// Loop
		for {
			select {
			case <-t.C:
				l.tick()
			case <-l.ctx.Done():
				return
			}
		}
	}()
	return l
}

// Close closes the event logger
func (l *EventLogger) Close() {
	if l.cancel != nil {
		l.cancel()
	}
	l.purge()
}

func (l *EventLogger) tick() {
	// Lock
	l.m.Lock()
	defer l.m.Unlock()

	// Get now
	n := time.Now()

	// Loop through items
	for k, i := range l.is {
		// Period has been reached
		if n.Sub(i.createdAt) > l.messageMergingPeriod {
			l.dumpItem(k, i)
		}
	}
}

func (l *EventLogger) purge() {
	// Lock
	l.m.Lock()
	defer l.m.Unlock()

	// Loop through items
	for k, i := range l.is {
		l.dumpItem(k, i)
	}
}

func (l *EventLogger) dumpItem(k string, i *eventLoggerItem) {
	if i.count > 1 {
		l.write(i.ll, fmt.Sprintf("astimux: pattern repeated %d times: %s", i.count, i.key))
	} else if i.count == 1 {
		l.write(i.ll, "astimux: pattern repeated once: "+i.msg)
	}
	delete(l.is, k)
}

func (l *EventLogger) process(key, msg string, ll astikit.LoggerLevel) {
	// Merge messages
	if l.messageMergingPeriod > 0 {
		if stop := l.merge(key, msg, ll); stop {
			return
		}
	}

	// Write
	l.write(ll, msg)
}

func (l *EventLogger) merge(key, msg string, ll astikit.LoggerLevel) (stop bool) {
	// Lock
	l.m.Lock()
	defer l.m.Unlock()

	// Create final key
	k := fmt.Sprintf("%v:%s", ll, key)

	// Check whether item exists
	i, ok := l.is[k]
	if ok {
		i.count++
		return true
	}

	// Create item
	l.is[k] = newEventLoggerItem(key, msg, ll)
	return false
}

func (l *EventLogger) write(ll astikit.LoggerLevel, msg string) {
	switch ll {
	case astikit.LoggerLevelDebug:
		l.l.Debug(msg)
	case astikit.LoggerLevelError:
		l.l.Error(msg)
	case astikit.LoggerLevelWarn:
		l.l.Warn(msg)
	default:
		l.l.Info(msg)
	}
}

// Writef writes a formatted message, using the message itself as merging key
func (l *EventLogger) Writef(ll astikit.LoggerLevel, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	l.process(msg, msg, ll)
}

// Writek writes a message merged under the provided key
func (l *EventLogger) Writek(ll astikit.LoggerLevel, key, msg string) {
	l.process(key, msg, ll)
}
