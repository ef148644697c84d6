package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"go.dedis.ch/hopdht/peer"
)

type dhtctrl struct {
	peer peer.Peer
	log  *zerolog.Logger
}

// NewDHT returns the controller exposing the operator commands of a node
// over HTTP.
func NewDHT(peer peer.Peer, log *zerolog.Logger) dhtctrl {
	return dhtctrl{
		peer: peer,
		log:  log,
	}
}

// StoreArgument is the body of a POST /store.
type StoreArgument struct {
	Key   int64           `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Mux returns the routes of the controller.
func (d dhtctrl) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/peers", d.PeersHandler())
	mux.Handle("/store", d.StoreHandler())
	mux.Handle("/get", d.GetHandler())
	mux.Handle("/mydata", d.MyDataHandler())

	return mux
}

func (d dhtctrl) PeersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			d.writeJSON(w, d.peer.GetPeers())
		default:
			http.Error(w, "forbidden method", http.StatusMethodNotAllowed)
		}
	}
}

func (d dhtctrl) StoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			d.store(w, r)
		default:
			http.Error(w, "forbidden method", http.StatusMethodNotAllowed)
		}
	}
}

func (d dhtctrl) GetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			d.get(w, r)
		default:
			http.Error(w, "forbidden method", http.StatusMethodNotAllowed)
		}
	}
}

func (d dhtctrl) MyDataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			data := d.peer.GetLocalData()

			res := make(map[string]json.RawMessage, len(data))
			for k, v := range data {
				res[strconv.FormatInt(k, 10)] = v
			}

			d.writeJSON(w, res)
		default:
			http.Error(w, "forbidden method", http.StatusMethodNotAllowed)
		}
	}
}

func (d dhtctrl) store(w http.ResponseWriter, r *http.Request) {
	var arg StoreArgument

	err := json.NewDecoder(r.Body).Decode(&arg)
	if err != nil {
		http.Error(w, "failed to unmarshal store argument: "+err.Error(), http.StatusBadRequest)
		return
	}

	if len(arg.Value) == 0 {
		http.Error(w, "missing value", http.StatusBadRequest)
		return
	}

	d.log.Info().Int64("key", arg.Key).Msg("store")

	err = d.peer.Store(arg.Key, arg.Value)
	if err != nil {
		http.Error(w, "failed to store: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (d dhtctrl) get(w http.ResponseWriter, r *http.Request) {
	key, err := strconv.ParseInt(r.URL.Query().Get("key"), 10, 64)
	if err != nil {
		http.Error(w, "invalid key: "+err.Error(), http.StatusBadRequest)
		return
	}

	d.log.Info().Int64("key", key).Msg("get")

	reply, err := d.peer.Retrieve(key)
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		d.writeJSON(w, reply)
		return
	}

	d.writeJSON(w, reply)
}

func (d dhtctrl) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to write response")
	}
}
