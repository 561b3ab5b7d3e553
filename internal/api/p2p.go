package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/libp2p/go-libp2p/core/peer"
)

// PeerLister reports the peers the node is currently connected to
type PeerLister interface {
	Peers() []peer.AddrInfo
}

func WithPeers(p PeerLister) Option {
	return func(a *Api) {
		a.peers = p
	}
}

func init() {
	reg = append(reg, func() APIHandler { return &p2pApi{} })
}

type PeerResponse struct {
	ID    string   `json:"id"`
	Addrs []string `json:"addrs"`
}

type p2pApi struct {
	a *Api
}

func (p *p2pApi) Setup(a *Api, r *mux.Router) error {
	p.a = a

	r.HandleFunc("/p2p/peers", p.list).Methods("GET")

	return nil
}

func (p *p2pApi) list(w http.ResponseWriter, _ *http.Request) {
	res := []PeerResponse{}

	if p.a.peers != nil {
		for _, pi := range p.a.peers.Peers() {
			pr := PeerResponse{ID: pi.ID.String(), Addrs: make([]string, 0, len(pi.Addrs))}
			for _, ma := range pi.Addrs {
				pr.Addrs = append(pr.Addrs, ma.String())
			}
			res = append(res, pr)
		}
	}

	p.a.writeJSON(w, res)
}
