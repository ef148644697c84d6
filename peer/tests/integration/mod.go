package integration

import (
	"go.dedis.ch/hopdht/peer"
	"go.dedis.ch/hopdht/peer/impl"
	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/transport/channel"
	"go.dedis.ch/hopdht/transport/tcp"
)

var peerFac peer.Factory = impl.NewPeer

var tcpFac transport.Factory = tcp.NewTCP
var channelFac transport.Factory = channel.NewTransport
