// Relay mirrors a Bus's events onto a libp2p gossip topic so multiple SDK
// processes (e.g. a syncd daemon and one or more CLI sessions) can observe
// the same event stream. It is optional and off by default; wallets that
// never call NewRelay never import libp2p at runtime. Adapted from the
// teacher repo's p2p.Node, trimmed to the single join/publish/subscribe
// path this needs (no DHT peer discovery, no mDNS).
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
)

// DefaultTopic is the gossip topic name events are relayed on.
const DefaultTopic = "ocash/events/v1"

// wireEvent is Event's JSON-serializable shape. It is an alias of Event, not
// a separate type, so the wire format is Event's own JSON encoding and
// changes whenever Event's fields do.
type wireEvent = Event

// Relay publishes local events to, and ingests remote events from, a
// libp2p gossip topic.
type Relay struct {
	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	bus   *Bus

	cancel context.CancelFunc
}

// NewRelay creates a libp2p host, joins topic (DefaultTopic if empty), and
// begins mirroring bus's local emissions onto it; remote events received on
// the topic are re-emitted into bus, tagged so a relay never rebroadcasts
// an event it just received (no infinite loop between two peers).
func NewRelay(ctx context.Context, bus *Bus, topic string) (*Relay, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	rctx, cancel := context.WithCancel(ctx)

	h, err := libp2p.New()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("eventbus: create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(rctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("eventbus: create pubsub: %w", err)
	}

	t, err := ps.Join(topic)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("eventbus: join topic: %w", err)
	}

	sub, err := t.Subscribe()
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("eventbus: subscribe: %w", err)
	}

	r := &Relay{host: h, ps: ps, topic: t, sub: sub, bus: bus, cancel: cancel}

	bus.SubscribeAll(func(ev Event) {
		data, err := json.Marshal(wireEvent(ev))
		if err != nil {
			return
		}
		_ = t.Publish(rctx, data)
	})

	go r.ingest(rctx)
	return r, nil
}

func (r *Relay) ingest(ctx context.Context) {
	for {
		msg, err := r.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == r.host.ID() {
			continue
		}
		var ev wireEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue
		}
		r.bus.Emit(Event(ev))
	}
}

// Close shuts down the relay's libp2p host and subscription.
func (r *Relay) Close() error {
	r.cancel()
	r.sub.Cancel()
	return r.host.Close()
}
