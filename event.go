package astimux

// Default event names
const (
	EventNameError         EventName = "astimux.error"
	EventNameStats         EventName = "astimux.stats"
	EventNameWorkerStarted EventName = "astimux.worker.started"
	EventNameWorkerStopped EventName = "astimux.worker.stopped"
)

// EventName represents an event name
type EventName string

// Event is an event coming out of the muxing pipeline
type Event struct {
	Name    EventName
	Payload interface{}
	Target  interface{}
}

// EventError returns an error event
func EventError(target interface{}, err error) Event {
	return Event{
		Name:    EventNameError,
		Payload: err,
		Target:  target,
	}
}

// EventStat represents a stat event payload item
type EventStat struct {
	Description string
	Label       string
	Name        string
	Target      interface{}
	Unit        string
	Value       interface{}
}
