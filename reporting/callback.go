package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/launchdarkly/suite-runner/framework"
	"github.com/launchdarkly/suite-runner/framework/testrun"
)

// eventEnvelope is the JSON body of a callback request.
type eventEnvelope struct {
	Kind  testrun.EventKind `json:"kind"`
	Event json.RawMessage   `json:"event"`
}

// CallbackSink posts every event it receives to <baseURL>/<counter>, where counter starts at 1
// and increases by one per event. Posts are made concurrently, so they can arrive out of
// order; EventReceiver puts them back in order.
type CallbackSink struct {
	baseURL string
	client  *http.Client
	logger  framework.Logger
	counter int
	pending sync.WaitGroup
	lock    sync.Mutex
}

// NewCallbackSink creates a CallbackSink. If client is nil, http.DefaultClient is used.
func NewCallbackSink(baseURL string, client *http.Client, logger framework.Logger) *CallbackSink {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &CallbackSink{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Attach subscribes to both kinds of events.
func (s *CallbackSink) Attach(src EventSource) {
	src.OnChange(testrun.EventTestStatus, s.Send)
	src.OnChange(testrun.EventTestSuiteStatus, s.Send)
}

// Send posts one event without waiting for the response. Failures are logged.
func (s *CallbackSink) Send(e testrun.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Printf("Unable to serialize %s event: %s", e.Kind(), err)
		return
	}
	body, _ := json.Marshal(eventEnvelope{Kind: e.Kind(), Event: data})

	s.lock.Lock()
	s.counter++
	url := fmt.Sprintf("%s/%d", s.baseURL, s.counter)
	s.pending.Add(1)
	s.lock.Unlock()

	go func() {
		defer s.pending.Done()
		resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			s.logger.Printf("Callback to %s failed: %s", url, err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			s.logger.Printf("Callback to %s returned HTTP %d", url, resp.StatusCode)
		}
	}()
}

// Close waits for all posts that have been started to finish.
func (s *CallbackSink) Close() {
	s.pending.Wait()
}
