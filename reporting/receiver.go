package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/launchdarkly/suite-runner/framework"
	"github.com/launchdarkly/suite-runner/framework/testrun"
)

const receiverBufferSize = 100

// ReceivedEvent is one event posted by a CallbackSink. Exactly one of Test and Suite is set.
type ReceivedEvent struct {
	Kind  testrun.EventKind
	Test  *testrun.TestStatusEvent
	Suite *testrun.SuiteStatusEvent

	raw string
}

func (e ReceivedEvent) String() string { return e.raw }

type receivedOutput struct {
	event ReceivedEvent
	err   error
}

// EventReceiver is an http.Handler for the requests made by a CallbackSink. It delivers the
// events in counter order regardless of the order the requests arrive in. The handler expects
// the request path to be "/<counter>", so mount it with http.StripPrefix if necessary.
type EventReceiver struct {
	sortedMessages *framework.MessageSortingQueue
	output         chan receivedOutput
	done           chan struct{}
	logger         framework.Logger
}

func NewEventReceiver(logger framework.Logger) *EventReceiver {
	if logger == nil {
		logger = framework.NullLogger()
	}
	r := &EventReceiver{
		sortedMessages: framework.NewMessageSortingQueue(receiverBufferSize),
		output:         make(chan receivedOutput, receiverBufferSize),
		done:           make(chan struct{}),
		logger:         logger,
	}
	go r.consumeMessages()
	return r
}

func (r *EventReceiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Body == nil {
		r.sendError(errors.New("got callback request with no body"))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer req.Body.Close()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		r.sendError(fmt.Errorf("error reading callback request body: %w", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	counter, err := strconv.Atoi(strings.TrimPrefix(req.URL.Path, "/"))
	if err != nil || counter < 1 {
		r.sendError(fmt.Errorf("callback request had invalid path %q", req.URL.Path))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.sortedMessages.Accept(counter, data)
	w.WriteHeader(http.StatusAccepted)
}

func (r *EventReceiver) consumeMessages() {
	for data := range r.sortedMessages.C {
		event, err := decodeEvent(data)
		if err != nil {
			r.sendError(err)
			continue
		}
		r.logger.Printf("Received: %s", event.raw)
		r.output <- receivedOutput{event: event}
	}
	close(r.done)
}

func decodeEvent(data []byte) (ReceivedEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ReceivedEvent{}, fmt.Errorf("malformed callback data: %s", string(data))
	}
	event := ReceivedEvent{Kind: envelope.Kind, raw: string(data)}
	var err error
	switch envelope.Kind {
	case testrun.EventTestStatus:
		event.Test = &testrun.TestStatusEvent{}
		err = json.Unmarshal(envelope.Event, event.Test)
	case testrun.EventTestSuiteStatus:
		event.Suite = &testrun.SuiteStatusEvent{}
		err = json.Unmarshal(envelope.Event, event.Suite)
	default:
		return ReceivedEvent{}, fmt.Errorf("unknown event kind %q in callback data", envelope.Kind)
	}
	if err != nil {
		return ReceivedEvent{}, fmt.Errorf("malformed %s event: %s", envelope.Kind, string(envelope.Event))
	}
	return event, nil
}

func (r *EventReceiver) sendError(err error) {
	r.logger.Printf("Error: %s", err)
	select {
	case r.output <- receivedOutput{err: err}:
	default:
		r.logger.Printf("Dropped error because the output buffer is full")
	}
}

// Close stops delivering events. Events that are still waiting for an earlier counter are
// discarded.
func (r *EventReceiver) Close() {
	r.sortedMessages.Close()
}

// AwaitEvent waits for the next event, or for an error about a malformed request.
func (r *EventReceiver) AwaitEvent(timeout time.Duration) (ReceivedEvent, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case item := <-r.output:
		return item.event, item.err
	case <-r.done:
		select {
		case item := <-r.output:
			return item.event, item.err
		default:
			return ReceivedEvent{}, errors.New("event receiver was already closed")
		}
	case <-deadline.C:
		return ReceivedEvent{}, errors.New("timed out waiting for event")
	}
}
