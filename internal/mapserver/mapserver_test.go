package mapserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestUDPServerPutGetRemove(t *testing.T) {
	srv, err := NewUDPServer(zaptest.NewLogger(t), "127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	go srv.Serve()

	client, err := DialUDP(srv.LocalAddr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	reply, err := client.Request("put:hitchhiker:42", time.Second)
	require.NoError(t, err)
	require.Equal(t, "ok", reply)

	reply, err = client.Request("get:hitchhiker", time.Second)
	require.NoError(t, err)
	require.Equal(t, "ok:42", reply)

	reply, err = client.Request("put:hitchhiker:43", time.Second)
	require.NoError(t, err)
	require.Equal(t, "updated:hitchhiker", reply)

	reply, err = client.Request("remove:hitchhiker", time.Second)
	require.NoError(t, err)
	require.Equal(t, "ok", reply)

	reply, err = client.Request("get:hitchhiker", time.Second)
	require.NoError(t, err)
	require.Equal(t, "no match", reply)

	reply, err = client.Request("nonsense", time.Second)
	require.NoError(t, err)
	require.Equal(t, "error:unrecognizable input:nonsense", reply)
}

func TestTCPServerGetAll(t *testing.T) {
	srv, err := NewTCPServer(zaptest.NewLogger(t), "127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	go srv.Serve()

	client, err := DialTCP(srv.LocalAddr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	reply, err := client.Request("get all")
	require.NoError(t, err)
	require.Equal(t, "no match", reply)

	reply, err = client.Request("put:a:1")
	require.NoError(t, err)
	require.Equal(t, "ok", reply)

	reply, err = client.Request("get all")
	require.NoError(t, err)
	require.Equal(t, "a:1", reply)
}
