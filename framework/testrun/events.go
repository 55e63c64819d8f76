package testrun

import "sync"

// EventKind identifies which kind of status event a listener receives.
type EventKind string

const (
	// EventTestStatus events are TestStatusEvent values.
	EventTestStatus EventKind = "TEST_STATUS"
	// EventTestSuiteStatus events are SuiteStatusEvent values.
	EventTestSuiteStatus EventKind = "TEST_SUITE_STATUS"
)

// Event is implemented by TestStatusEvent and SuiteStatusEvent.
type Event interface {
	Kind() EventKind
}

// TestStatusEvent reports a change in the status of one test. Time is the number of
// milliseconds since the test started, or zero when it has just started.
type TestStatusEvent struct {
	TestID     string `json:"testId"`
	Status     Status `json:"status"`
	Time       int64  `json:"time"`
	Message    string `json:"message"`
	StackTrace string `json:"stackTrace,omitempty"`
}

func (TestStatusEvent) Kind() EventKind { return EventTestStatus }

// SuiteStatusEvent reports the progress of the whole run. Progress is a percentage of
// completed tests; Time is the number of milliseconds since the run started.
type SuiteStatusEvent struct {
	SuiteID    string  `json:"suiteId"`
	Status     Status  `json:"status"`
	Progress   float64 `json:"progress"`
	Time       int64   `json:"time"`
	Message    string  `json:"message"`
	StackTrace string  `json:"stackTrace,omitempty"`
}

func (SuiteStatusEvent) Kind() EventKind { return EventTestSuiteStatus }

// Listener receives status events. It is called synchronously on the goroutine that runs the
// test suite, so it should not block for long.
type Listener func(Event)

type registeredListener struct {
	id       int
	listener Listener
}

type listenerRegistry struct {
	byKind map[EventKind][]registeredListener
	lastID int
	lock   sync.Mutex
}

func (r *listenerRegistry) add(kind EventKind, listener Listener) func() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.byKind == nil {
		r.byKind = make(map[EventKind][]registeredListener)
	}
	r.lastID++
	id := r.lastID
	r.byKind[kind] = append(r.byKind[kind], registeredListener{id: id, listener: listener})
	return func() { r.remove(kind, id) }
}

func (r *listenerRegistry) remove(kind EventKind, id int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	list := r.byKind[kind]
	for i, l := range list {
		if l.id == id {
			r.byKind[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (r *listenerRegistry) emit(e Event) {
	r.lock.Lock()
	list := r.byKind[e.Kind()]
	r.lock.Unlock()
	for _, l := range list {
		l.listener(e)
	}
}
