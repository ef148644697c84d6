package impl

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"go.dedis.ch/hopdht/transport"
	"go.dedis.ch/hopdht/types"
)

// JoinRequestExec adds the joining node and answers with the peer table plus
// this node.
func (n *node) JoinRequestExec(msg types.Message, pkt transport.Packet) (interface{}, error) {
	req, ok := msg.(*types.JoinRequest)
	if !ok {
		return nil, fmt.Errorf("wrong type: %T", msg)
	}

	n.conf.Tracer.UnpackReceive(fmt.Sprintf("recv JOIN from %d", req.Node.ID), req.Trace)

	n.AddPeer(req.Node)

	reply := types.PeersReply{
		Type:  "PEERS",
		Peers: append(n.peers.All(), n.conf.Identity),
	}

	return reply, nil
}

// StoreRequestExec runs the STORE protocol. There is no reply.
func (n *node) StoreRequestExec(msg types.Message, pkt transport.Packet) (interface{}, error) {
	req, ok := msg.(*types.StoreRequest)
	if !ok {
		return nil, fmt.Errorf("wrong type: %T", msg)
	}

	log.Info().Str("reqID", req.RequestID).Int64("key", req.Key).
		Msgf("[peer.Peer.StoreRequestExec] received STORE from %s", pkt.Source)

	n.conf.Tracer.UnpackReceive(fmt.Sprintf("recv STORE %d", req.Key), req.Trace)

	return nil, n.routeStore(*req)
}

// RetrieveRequestExec runs the RETRIEVE protocol and always answers, with the
// error set when the lookup failed.
func (n *node) RetrieveRequestExec(msg types.Message, pkt transport.Packet) (interface{}, error) {
	req, ok := msg.(*types.RetrieveRequest)
	if !ok {
		return nil, fmt.Errorf("wrong type: %T", msg)
	}

	log.Info().Str("reqID", req.RequestID).Int64("key", req.Key).
		Msgf("[peer.Peer.RetrieveRequestExec] received RETRIEVE from %s", pkt.Source)

	n.conf.Tracer.UnpackReceive(fmt.Sprintf("recv RETRIEVE %d", req.Key), req.Trace)

	reply, err := n.routeRetrieve(*req)
	if err != nil {
		log.Warn().Str("reqID", req.RequestID).
			Msgf("<[peer.Peer.RetrieveRequestExec] lookup error>: <%s>", err.Error())
	}

	return reply, nil
}
