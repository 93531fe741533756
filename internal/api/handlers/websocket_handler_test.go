package handlers_test

import (
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcba-mpi-api-server/internal/api/handlers"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/testutil"
)

func TestWebsocketKeepsListenOnlyClientAlive(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, engineerID := env.SignupEngineer("eve@example.com", "Eve")

	h := &handlers.WebSocketHandler{
		Hub:        env.Hub,
		Tokens:     env.Tokens,
		Log:        logger.NewNop(),
		PongWait:   300 * time.Millisecond,
		PingPeriod: 100 * time.Millisecond,
	}
	r := gin.New()
	r.GET("/ws", h.ServeWs)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The client only reads. Its ping handler answers with a pong, as browsers do.
	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	messages := make(chan string, 1)
	go func() {
		defer close(messages)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			messages <- string(data)
		}
	}()

	require.Eventually(t, func() bool { return env.Hub.Online(engineerID) }, time.Second, 10*time.Millisecond)
	time.Sleep(time.Second)

	assert.GreaterOrEqual(t, pings.Load(), int32(3))
	require.True(t, env.Hub.Online(engineerID))
	require.NoError(t, env.Hub.Send(engineerID, []byte(`{"event":"ping-test"}`)))

	select {
	case msg, ok := <-messages:
		require.True(t, ok, "connection closed before the message arrived")
		assert.Equal(t, `{"event":"ping-test"}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
