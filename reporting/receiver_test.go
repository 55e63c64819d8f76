package reporting

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-runner/framework/testrun"
)

func post(receiver http.Handler, path, body string) int {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	w := httptest.NewRecorder()
	receiver.ServeHTTP(w, req)
	return w.Code
}

func testEventJSON(id string) string {
	return `{"kind":"TEST_STATUS","event":{"testId":"` + id + `","status":"OK","time":1,"message":""}}`
}

func TestEventReceiverReordersEvents(t *testing.T) {
	receiver := NewEventReceiver(nil)
	defer receiver.Close()

	assert.Equal(t, http.StatusAccepted, post(receiver, "/2", testEventJSON("second")))
	assert.Equal(t, http.StatusAccepted, post(receiver, "/3",
		`{"kind":"TEST_SUITE_STATUS","event":{"suiteId":"s","status":"OK","progress":100,"time":5,"message":""}}`))

	_, err := receiver.AwaitEvent(time.Millisecond * 50)
	require.Error(t, err)

	assert.Equal(t, http.StatusAccepted, post(receiver, "/1", testEventJSON("first")))

	first, err := receiver.AwaitEvent(time.Second)
	require.NoError(t, err)
	require.NotNil(t, first.Test)
	assert.Equal(t, "first", first.Test.TestID)
	assert.Nil(t, first.Suite)

	second, err := receiver.AwaitEvent(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", second.Test.TestID)
	assert.Equal(t, testEventJSON("second"), second.String())

	third, err := receiver.AwaitEvent(time.Second)
	require.NoError(t, err)
	assert.Equal(t, testrun.EventTestSuiteStatus, third.Kind)
	require.NotNil(t, third.Suite)
	assert.Equal(t, testrun.Status("OK"), third.Suite.Status)
	assert.Equal(t, float64(100), third.Suite.Progress)
}

func TestEventReceiverRejectsBadPath(t *testing.T) {
	receiver := NewEventReceiver(nil)
	defer receiver.Close()

	for _, path := range []string{"/", "/x", "/0", "/1/2"} {
		assert.Equal(t, http.StatusBadRequest, post(receiver, path, testEventJSON("a")), path)
		_, err := receiver.AwaitEvent(time.Second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid path")
	}
}

func TestEventReceiverReportsMalformedData(t *testing.T) {
	receiver := NewEventReceiver(nil)
	defer receiver.Close()

	post(receiver, "/1", "not json")
	_, err := receiver.AwaitEvent(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed callback data")

	post(receiver, "/2", `{"kind":"OTHER","event":{}}`)
	_, err = receiver.AwaitEvent(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown event kind "OTHER"`)

	post(receiver, "/3", testEventJSON("ok"))
	event, err := receiver.AwaitEvent(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", event.Test.TestID)
}

func TestEventReceiverClosed(t *testing.T) {
	receiver := NewEventReceiver(nil)
	post(receiver, "/1", testEventJSON("a"))
	post(receiver, "/3", testEventJSON("c"))

	event, err := receiver.AwaitEvent(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", event.Test.TestID)

	receiver.Close()
	_, err = receiver.AwaitEvent(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")
}
