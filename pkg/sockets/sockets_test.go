package sockets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T, pings chan<- struct{}) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if pings != nil {
			ws.SetPingHandler(func(string) error {
				select {
				case pings <- struct{}{}:
				default:
				}
				return nil
			})
		}
		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConn_SendReceive(t *testing.T) {
	received := make(chan []byte, 3)
	c := New(OnMessage(func(b []byte, _ Connection) { received <- b }))
	require.NoError(t, c.Dial(context.Background(), echoServer(t, nil)))
	defer c.Close()

	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, c.Send(Msg{Body: []byte(body)}))
	}
	for _, want := range []string{"one", "two", "three"} {
		select {
		case got := <-received:
			assert.Equal(t, want, string(got))
		case <-time.After(time.Second):
			t.Fatalf("no echo for %q", want)
		}
	}
}

func TestConn_Close(t *testing.T) {
	var gotErr error
	c := New(OnError(func(err error) { gotErr = err }))
	require.NoError(t, c.Dial(context.Background(), echoServer(t, nil)))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("read loop still running")
	}
	assert.ErrorIs(t, c.Send(Msg{Body: []byte("late")}), ErrClosed)
	assert.NoError(t, gotErr)
}

func TestConn_SendBeforeDial(t *testing.T) {
	assert.ErrorIs(t, New().Send(Msg{Body: []byte("x")}), ErrClosed)
}

func TestConn_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(WithHandshakeTimeout(time.Second))
	err := c.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestConn_Ping(t *testing.T) {
	pings := make(chan struct{}, 1)
	c := New(WithPingInterval(10 * time.Millisecond))
	require.NoError(t, c.Dial(context.Background(), echoServer(t, pings)))
	defer c.Close()

	select {
	case <-pings:
	case <-time.After(time.Second):
		t.Fatal("no ping received")
	}
}

func TestConn_RemoteClose(t *testing.T) {
	errs := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer srv.Close()

	c := New(OnError(func(err error) { errs <- err }))
	require.NoError(t, c.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http")))

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("remote close not reported")
	}
	<-c.Done()
}
