package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luggage-locker-backend/internal/events"
)

func TestHub_StreamsEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration happens after the handshake; wait for it.
	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	w := s.do(t, http.MethodPost, "/api/sessions", checkInBody(1))
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e events.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, events.SessionCheckedIn, e.Kind)
	require.NotNil(t, e.Session)
	assert.Equal(t, "LUG-T0001", e.Session.TagNumber)

	conn.Close()
	assert.Eventually(t, func() bool { return s.hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	c := &wsClient{send: make(chan []byte, 1)}
	hub.register(c)

	hub.HandleEvent(events.Event{Kind: events.LockerUpdated})
	assert.Equal(t, 1, hub.Clients())

	hub.HandleEvent(events.Event{Kind: events.LockerUpdated})
	assert.Equal(t, 0, hub.Clients())

	_, open := <-c.send
	assert.True(t, open, "buffered event is still delivered")
	_, open = <-c.send
	assert.False(t, open)

	// Unregistering an already dropped client is harmless.
	assert.NotPanics(t, func() { hub.unregister(c) })
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	assert.True(t, open(req("https://anywhere.example")))

	strict := originChecker([]string{"https://desk.example"})
	assert.True(t, strict(req("https://desk.example")))
	assert.True(t, strict(req("")))
	assert.False(t, strict(req("https://evil.example")))
}
