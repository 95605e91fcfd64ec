package mesh

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"coordinator-core/core"
)

// MessageKind discriminates the peer-exchange envelope types of §4.C.
type MessageKind string

const (
	KindHello        MessageKind = "HELLO"
	KindWelcome      MessageKind = "WELCOME"
	KindReject       MessageKind = "REJECT"
	KindAnnounce     MessageKind = "ANNOUNCE"
	KindRequestDelta MessageKind = "REQUEST_DELTA"
	KindDelta        MessageKind = "DELTA"
	KindGossip       MessageKind = "GOSSIP"
)

// Envelope is the wire frame exchanged over /mesh/ws.
type Envelope struct {
	Kind MessageKind     `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// HelloBody is the initial handshake message a connecting peer sends.
type HelloBody struct {
	PeerID    string `json:"peerId"`
	PublicKey []byte `json:"publicKey"`
	URL       string `json:"url"`
	Role      string `json:"role"`
	Version   string `json:"version"`
}

// WelcomeBody accepts a handshake.
type WelcomeBody struct {
	AcceptedPeerID string `json:"acceptedPeerId"`
}

// RejectBody declines a handshake.
type RejectBody struct {
	Reason string `json:"reason"`
}

// AnnounceBody is the periodic capability/ledger/blacklist digest of §4.C,
// broadcast every 30s jittered.
type AnnounceBody struct {
	CapabilityDigest string `json:"capabilityDigest"`
	LedgerHeadHash   string `json:"ledgerHeadHash"`
	BlacklistVersion uint64 `json:"blacklistVersion"`
}

// RequestDeltaBody asks a peer for records newer than SinceVersion.
type RequestDeltaBody struct {
	SinceVersion uint64 `json:"sinceVersion"`
}

// DeltaBody carries the records satisfying a RequestDeltaBody.
type DeltaBody struct {
	Records []core.BlacklistRecord `json:"records"`
}

// GossipBody is a reactive broadcast of updated records.
type GossipBody struct {
	OriginID string                  `json:"originId"`
	Version  uint64                  `json:"version"`
	Records  []core.BlacklistRecord  `json:"records"`
	TTL      int                     `json:"ttl"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HelloHandler decides whether to accept an incoming HELLO, returning the
// WELCOME/REJECT response to send back.
type HelloHandler func(HelloBody) (accept bool, reason string)

// Conn wraps one peer's WebSocket with a dedicated send-worker and
// receive-worker goroutine pair, per §5 ("one send-worker and one
// receive-worker per peer connection").
type Conn struct {
	PeerID string
	ws     *websocket.Conn
	send   chan Envelope
	log    *logrus.Entry
}

// ServeWS upgrades an HTTP request to a WebSocket, performs the HELLO
// handshake, and if accepted starts the send/receive worker pair. inbound
// receives every envelope after a successful handshake.
func ServeWS(w http.ResponseWriter, r *http.Request, handler HelloHandler, inbound chan<- Envelope, log *logrus.Entry) (*Conn, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	var hello Envelope
	if err := conn.ReadJSON(&hello); err != nil || hello.Kind != KindHello {
		conn.WriteJSON(Envelope{Kind: KindReject, Body: mustJSON(RejectBody{Reason: "expected HELLO"})})
		conn.Close()
		return nil, err
	}
	var body HelloBody
	if err := json.Unmarshal(hello.Body, &body); err != nil {
		conn.WriteJSON(Envelope{Kind: KindReject, Body: mustJSON(RejectBody{Reason: "malformed HELLO"})})
		conn.Close()
		return nil, err
	}

	accept, reason := handler(body)
	if !accept {
		conn.WriteJSON(Envelope{Kind: KindReject, Body: mustJSON(RejectBody{Reason: reason})})
		conn.Close()
		return nil, nil
	}
	if err := conn.WriteJSON(Envelope{Kind: KindWelcome, Body: mustJSON(WelcomeBody{AcceptedPeerID: body.PeerID})}); err != nil {
		conn.Close()
		return nil, err
	}

	c := &Conn{PeerID: body.PeerID, ws: conn, send: make(chan Envelope, 64), log: log}
	go c.sendWorker()
	go c.receiveWorker(inbound)
	return c, nil
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func (c *Conn) sendWorker() {
	for env := range c.send {
		if err := c.ws.WriteJSON(env); err != nil {
			c.log.WithError(err).Debug("mesh send worker write failed")
			return
		}
	}
}

func (c *Conn) receiveWorker(inbound chan<- Envelope) {
	defer close(c.send)
	defer c.ws.Close()
	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			c.log.WithError(err).Debug("mesh receive worker closed")
			return
		}
		inbound <- env
	}
}

// Send enqueues an outbound envelope for this peer's send worker.
func (c *Conn) Send(env Envelope) {
	select {
	case c.send <- env:
	default:
		c.log.Warn("mesh send queue full, dropping envelope")
	}
}

// Close shuts down the connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// AnnounceJitter returns the 30s announce interval with up to 10% jitter,
// per §4.C.
func AnnounceJitter(base time.Duration, jitterFrac float64, randFn func() float64) time.Duration {
	jitter := time.Duration(float64(base) * jitterFrac * (randFn()*2 - 1))
	return base + jitter
}
