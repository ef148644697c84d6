package unit

import (
	"go.dedis.ch/hopdht/peer"
	"go.dedis.ch/hopdht/peer/impl"
)

var peerFac peer.Factory = impl.NewPeer
