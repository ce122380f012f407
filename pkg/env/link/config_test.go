package link

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mculink/pkg/ipc/websocket"
)

func TestOpenUnknownScheme(t *testing.T) {
	_, err := (&Config{URL: "carrier-pigeon://coop"}).Open(RoleDriver)
	require.Error(t, err)
	_, err = (&Config{URL: "://"}).Open(RoleDriver)
	require.Error(t, err)
}

func TestOpenWebsocketPair(t *testing.T) {
	drv, err := (&Config{URL: "ws://127.0.0.1:0/ipc"}).Open(RoleDriver)
	require.NoError(t, err)
	defer drv.Close()
	require.Len(t, drv.Runnables(), 1)

	srv := drv.PacketReadWriter.(*websocket.Server)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	con, err := (&Config{URL: "ws://" + srv.ListenAddr().String() + "/ipc"}).Open(RoleConsumer)
	require.NoError(t, err)
	defer con.Close()
	require.Empty(t, con.Runnables())

	require.NoError(t, con.WritePacket([]byte("cmd")))
	pkt, err := drv.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("cmd"), pkt)
}

func TestInstanceFromURL(t *testing.T) {
	c := &Config{Instance: "bench"}
	u := mustParse(t, "mqtt://localhost/x?instance=rig2")
	require.Equal(t, "rig2", c.instance(u))
	u = mustParse(t, "mqtt://localhost/x")
	require.Equal(t, "bench", c.instance(u))
}

func mustParse(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
