package impl

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/hopdht/types"
	"golang.org/x/xerrors"
)

// ErrHopLimit is returned when a request would be forwarded more than the
// configured number of times.
var ErrHopLimit = errors.New("hop limit reached")

// ErrForwardFailed is returned when the nearest peer could not be reached.
var ErrForwardFailed = errors.New("forward failed")

// route applies the authority rule for key: this node keeps the key iff its
// distance to key is not greater than the one of its nearest peer. Ties are
// kept locally. When the node is not authoritative, the nearest peer is
// returned.
func (n *node) route(key int64) (types.NodeIdentity, bool) {
	myDist := Distance(n.conf.Identity.ID, key)

	peerDist := uint64(math.MaxUint64)
	nearest, found := n.peers.Nearest(key)
	if found {
		peerDist = Distance(nearest.ID, key)
	}

	// with no peer the node is authoritative, even at the maximal distance
	if !found || myDist <= peerDist {
		return types.NodeIdentity{}, true
	}

	return nearest, false
}

// Join implements peer.DHT
func (n *node) Join(address string) error {
	req := types.JoinRequest{
		RequestID: xid.New().String(),
		Node:      n.conf.Identity,
		Trace:     n.conf.Tracer.PrepareSend(fmt.Sprintf("send JOIN to %s", address)),
	}

	log.Info().Str("reqID", req.RequestID).Msgf("[peer.Peer.Join] contacting bootstrap node %s", address)

	var reply types.PeersReply

	err := n.call(address, req, &reply)
	if err != nil {
		return xerrors.Errorf("failed to join %s: %v", address, err)
	}

	n.AddPeer(reply.Peers...)

	return nil
}

// Store implements peer.DHT
func (n *node) Store(key int64, value json.RawMessage) error {
	if !json.Valid(value) {
		return xerrors.Errorf("value of key %d is not valid json", key)
	}

	req := types.StoreRequest{
		RequestID: xid.New().String(),
		Key:       key,
		Value:     value,
	}

	return n.routeStore(req)
}

// Retrieve implements peer.DHT
func (n *node) Retrieve(key int64) (types.RetrieveReply, error) {
	req := types.RetrieveRequest{
		RequestID: xid.New().String(),
		Key:       key,
	}

	return n.routeRetrieve(req)
}

// routeStore keeps the pair if this node is authoritative for the key, otherwise
// it forwards the request to the nearest peer without waiting for a reply.
func (n *node) routeStore(req types.StoreRequest) error {
	nearest, authoritative := n.route(req.Key)

	if authoritative {
		log.Info().Str("reqID", req.RequestID).Int64("key", req.Key).
			Msgf("[peer.Peer.routeStore] node %d is closest, storing", n.conf.Identity.ID)

		n.store.Put(req.Key, req.Value)
		n.conf.Tracer.LogLocalEvent(fmt.Sprintf("store key %d", req.Key))
		return nil
	}

	if req.Hops >= n.conf.MaxHops {
		log.Warn().Str("reqID", req.RequestID).Int64("key", req.Key).
			Msgf("<[peer.Peer.routeStore] dropped>: <%s after %d hops>", ErrHopLimit, req.Hops)
		return xerrors.Errorf("store %d: %w", req.Key, ErrHopLimit)
	}

	log.Info().Str("reqID", req.RequestID).Int64("key", req.Key).Int64("peer", nearest.ID).
		Msgf("[peer.Peer.routeStore] forwarding STORE to node %d", nearest.ID)

	fwd := req
	fwd.Hops++
	fwd.Trace = n.conf.Tracer.PrepareSend(fmt.Sprintf("forward STORE %d to %d", req.Key, nearest.ID))

	err := n.call(nearest.Addr(), fwd, nil)
	if err != nil {
		log.Error().Str("reqID", req.RequestID).Int64("peer", nearest.ID).
			Msgf("<[peer.Peer.routeStore] forward error>: <%s>", err.Error())
		return xerrors.Errorf("store %d via node %d: %v: %w", req.Key, nearest.ID, err, ErrForwardFailed)
	}

	return nil
}

// routeRetrieve answers from the local store first, then applies the authority
// rule, and finally forwards the request to the nearest peer and waits for its
// reply. A failed forward is reported in the reply and as an error.
func (n *node) routeRetrieve(req types.RetrieveRequest) (types.RetrieveReply, error) {
	val, found := n.store.Get(req.Key)
	if found {
		log.Info().Str("reqID", req.RequestID).Int64("key", req.Key).
			Msg("[peer.Peer.routeRetrieve] found key in local storage")
		return types.RetrieveReply{Result: val}, nil
	}

	nearest, authoritative := n.route(req.Key)
	if authoritative {
		return types.NotFoundReply(), nil
	}

	if req.Hops >= n.conf.MaxHops {
		err := xerrors.Errorf("retrieve %d: %w", req.Key, ErrHopLimit)
		return types.RetrieveReply{Error: err.Error()}, err
	}

	log.Info().Str("reqID", req.RequestID).Int64("key", req.Key).Int64("peer", nearest.ID).
		Msgf("[peer.Peer.routeRetrieve] forwarding RETRIEVE to node %d", nearest.ID)

	fwd := req
	fwd.Hops++
	fwd.Trace = n.conf.Tracer.PrepareSend(fmt.Sprintf("forward RETRIEVE %d to %d", req.Key, nearest.ID))

	var reply types.RetrieveReply

	err := n.call(nearest.Addr(), fwd, &reply)
	if err != nil {
		log.Error().Str("reqID", req.RequestID).Int64("peer", nearest.ID).
			Msgf("<[peer.Peer.routeRetrieve] forward error>: <%s>", err.Error())

		err = xerrors.Errorf("retrieve %d via node %d: %v: %w", req.Key, nearest.ID, err, ErrForwardFailed)
		return types.RetrieveReply{Error: err.Error()}, err
	}

	if reply.Error != "" {
		return reply, xerrors.Errorf("node %d: %s", nearest.ID, reply.Error)
	}

	return reply, nil
}
