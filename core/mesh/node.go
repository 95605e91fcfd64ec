// Package mesh implements peer discovery, gossip and the long-lived
// WebSocket exchange between coordinators (spec component C). It mirrors
// the teacher's libp2p host wrapper (core/network.go) generalized from
// blockchain gossip topics to coordinator capability/blacklist/checkpoint
// topics.
package mesh

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/sirupsen/logrus"
)

// Topic names for the gossip channels of §4.C.
const (
	TopicAnnounce     = "coordinator/announce/v1"
	TopicGossip       = "coordinator/gossip/v1"
	TopicRequestDelta = "coordinator/request-delta/v1"
	TopicDelta        = "coordinator/delta/v1"
)

// Message is an inbound pubsub message.
type Message struct {
	From  string
	Topic string
	Data  []byte
}

// Node wraps a libp2p host with gossipsub and mDNS discovery.
type Node struct {
	host   hostLike
	pubsub *pubsub.PubSub

	topicLock sync.Mutex
	topics    map[string]*pubsub.Topic

	subLock sync.Mutex
	subs    map[string]*pubsub.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	log    *logrus.Entry
}

// hostLike narrows the libp2p host to the methods Node uses, easing testing.
type hostLike interface {
	ID() peer.ID
	Connect(ctx context.Context, pi peer.AddrInfo) error
	Close() error
}

// Config configures a mesh Node.
type Config struct {
	ListenAddr     string
	DiscoveryTag   string
	BootstrapPeers []string
}

// NewNode creates and bootstraps a mesh node: a libp2p host, gossipsub
// router, mDNS discovery service, and a best-effort dial of the static
// bootstrap list.
func NewNode(cfg Config, log *logrus.Entry) (*Node, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}

	n := &Node{
		host:   h,
		pubsub: ps,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}

	if err := n.DialSeed(cfg.BootstrapPeers); err != nil {
		log.WithError(err).Warn("bootstrap dial had failures")
	}

	mdns.NewMdnsService(h, cfg.DiscoveryTag, &mdnsNotifee{node: n})

	return n, nil
}

type mdnsNotifee struct{ node *Node }

func (m *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == m.node.host.ID() {
		return
	}
	if err := m.node.host.Connect(m.node.ctx, info); err != nil {
		m.node.log.WithError(err).Warnf("mdns connect to %s failed", info.ID)
		return
	}
	m.node.log.Infof("connected to peer %s via mDNS", info.ID)
}

// DialSeed connects to the static bootstrap list (discovery order step 3 of
// §4.C).
func (n *Node) DialSeed(seeds []string) error {
	var errs []string
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid addr %s: %v", addr, err))
			continue
		}
		if err := n.host.Connect(n.ctx, *pi); err != nil {
			errs = append(errs, fmt.Sprintf("connect %s: %v", addr, err))
			continue
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("dial errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Broadcast publishes data on topic, joining it lazily on first use.
func (n *Node) Broadcast(topic string, data []byte) error {
	n.topicLock.Lock()
	t, ok := n.topics[topic]
	if !ok {
		var err error
		t, err = n.pubsub.Join(topic)
		if err != nil {
			n.topicLock.Unlock()
			return fmt.Errorf("join topic %s: %w", topic, err)
		}
		n.topics[topic] = t
	}
	n.topicLock.Unlock()
	if err := t.Publish(n.ctx, data); err != nil {
		return fmt.Errorf("publish topic %s: %w", topic, err)
	}
	return nil
}

// Subscribe listens for messages on topic, returning a channel closed when
// the subscription ends.
func (n *Node) Subscribe(topic string) (<-chan Message, error) {
	n.subLock.Lock()
	sub, ok := n.subs[topic]
	if !ok {
		var err error
		sub, err = n.pubsub.Subscribe(topic)
		if err != nil {
			n.subLock.Unlock()
			return nil, fmt.Errorf("subscribe topic %s: %w", topic, err)
		}
		n.subs[topic] = sub
	}
	n.subLock.Unlock()

	out := make(chan Message)
	go func() {
		for {
			msg, err := sub.Next(n.ctx)
			if err != nil {
				n.log.WithError(err).Debug("subscription ended")
				close(out)
				return
			}
			out <- Message{From: msg.GetFrom().String(), Topic: topic, Data: msg.Data}
		}
	}()
	return out, nil
}

// Close tears down the node.
func (n *Node) Close() error {
	n.cancel()
	return n.host.Close()
}

// ID returns this node's libp2p peer id string.
func (n *Node) ID() string {
	return n.host.ID().String()
}
