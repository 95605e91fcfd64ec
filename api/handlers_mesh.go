package api

import (
	"encoding/base64"
	"net/http"

	"coordinator-core/core"
	"coordinator-core/core/mesh"
)

type meshPeerView struct {
	PeerID     string  `json:"peerId"`
	URL        string  `json:"url"`
	Reputation float64 `json:"reputation"`
}

// handleMeshPeers implements GET /mesh/peers.
func (s *Server) handleMeshPeers(w http.ResponseWriter, r *http.Request) {
	if s.Peers == nil {
		writeJSON(w, http.StatusOK, []meshPeerView{})
		return
	}
	peers := s.Peers.All()
	out := make([]meshPeerView, 0, len(peers))
	for _, p := range peers {
		out = append(out, meshPeerView{PeerID: p.PeerID, URL: p.URL, Reputation: p.Reputation})
	}
	writeJSON(w, http.StatusOK, out)
}

type meshHelloRequest struct {
	PeerID    string `json:"peerId"`
	PublicKey string `json:"publicKey"`
	URL       string `json:"url"`
	Role      string `json:"role"`
}

// handleMeshHello implements POST /mesh/hello, the HTTP-side counterpart of
// the /mesh/ws HELLO handshake for peers that only need a one-shot
// introduction (e.g. registering a seed address).
func (s *Server) handleMeshHello(w http.ResponseWriter, r *http.Request) {
	var req meshHelloRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	pub, _ := base64.StdEncoding.DecodeString(req.PublicKey)
	if s.Peers != nil {
		s.Peers.Upsert(core.PeerCoordinator{PeerID: req.PeerID, URL: req.URL, PublicKey: pub, Role: req.Role})
		s.Peers.RecordSuccess(req.PeerID, s.Now())
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

// handleMeshWS implements the /mesh/ws upgrade and handshake, gating
// admission through the shared mesh token carried in the upgrade request's
// meshToken query parameter rather than in the signed-request headers.
func (s *Server) handleMeshWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("meshToken")
	if s.MeshGate == nil || !s.MeshGate.Check(token) {
		writeError(w, core.Fail(core.ErrMeshTokenRequired, "missing or invalid mesh token"))
		return
	}

	inbound := make(chan mesh.Envelope, 32)
	conn, err := mesh.ServeWS(w, r, func(h mesh.HelloBody) (bool, string) {
		if s.Peers != nil {
			s.Peers.Upsert(core.PeerCoordinator{PeerID: h.PeerID, URL: h.URL, PublicKey: h.PublicKey, Role: h.Role})
		}
		return true, ""
	}, inbound, s.Log)
	if err != nil || conn == nil {
		return
	}

	go s.pumpMeshInbound(conn, inbound)
}

// pumpMeshInbound applies GOSSIP/DELTA/ANNOUNCE envelopes arriving on a
// mesh WebSocket connection, deduplicating gossip via s.Dedupe per §4.C.
func (s *Server) pumpMeshInbound(conn *mesh.Conn, inbound <-chan mesh.Envelope) {
	for env := range inbound {
		switch env.Kind {
		case mesh.KindGossip:
			var body mesh.GossipBody
			if err := decodeEnvelopeBody(env, &body); err != nil {
				continue
			}
			if s.Dedupe != nil && s.Dedupe.Seen(body.OriginID, body.Version) {
				continue
			}
			for _, rec := range body.Records {
				if s.Blacklist != nil {
					s.Blacklist.MergeFromPeer(rec, conn.PeerID)
				}
			}
			if next, propagate := mesh.Forward(body.TTL); propagate {
				body.TTL = next
				conn.Send(mesh.Envelope{Kind: mesh.KindGossip, Body: mustMarshal(body)})
			}
		case mesh.KindRequestDelta:
			var body mesh.RequestDeltaBody
			if err := decodeEnvelopeBody(env, &body); err != nil {
				continue
			}
			var records []core.BlacklistRecord
			if s.Blacklist != nil {
				records = s.Blacklist.Delta(body.SinceVersion)
			}
			conn.Send(mesh.Envelope{Kind: mesh.KindDelta, Body: mustMarshal(mesh.DeltaBody{Records: records})})
		case mesh.KindAnnounce:
			if s.Peers != nil {
				s.Peers.RecordSuccess(conn.PeerID, s.Now())
			}
		}
	}
}
