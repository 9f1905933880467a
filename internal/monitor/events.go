package monitor

import "time"

// EventType classifies engine events delivered to subscribers.
type EventType string

const (
	EventLimitDetected  EventType = "limit_detected"
	EventApprovalNeeded EventType = "approval_needed"
	EventTaskCompleted  EventType = "task_completed"
	EventError          EventType = "error"
)

// Event is a structured observation from one monitoring cycle.
type Event struct {
	Type      EventType
	SessionID string
	Data      map[string]string
	Timestamp time.Time
}

const subscriberBuffer = 16

// Subscribe registers an event channel under id, replacing any previous
// subscription with the same id. The returned channel is closed by
// Unsubscribe or Close.
func (e *Engine) Subscribe(id string) <-chan Event {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if old, ok := e.subscribers[id]; ok {
		close(old)
	}
	ch := make(chan Event, subscriberBuffer)
	e.subscribers[id] = ch
	return ch
}

// Unsubscribe removes the subscription registered under id and closes its
// channel. Unknown ids are ignored.
func (e *Engine) Unsubscribe(id string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if ch, ok := e.subscribers[id]; ok {
		close(ch)
		delete(e.subscribers, id)
	}
}

// emit fans an event out to every subscriber without blocking the poll
// loop. Slow subscribers lose events. Sends stay under the read lock so an
// Unsubscribe cannot close a channel mid-send; they never block, so the
// lock is held only briefly.
func (e *Engine) emit(evt Event) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for id, ch := range e.subscribers {
		select {
		case ch <- evt:
		default:
			e.logger.Warn("event subscriber queue full, dropping event",
				"subscriber", id, "event_type", string(evt.Type), "session_id", evt.SessionID)
		}
	}
}

func (e *Engine) newEvent(typ EventType, sessionID string, data map[string]string) Event {
	return Event{Type: typ, SessionID: sessionID, Data: data, Timestamp: e.now()}
}
