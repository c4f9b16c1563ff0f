package publish

import (
	"testing"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/ws"
)

type recordingSink struct {
	topics   []string
	payloads [][]byte
}

func (s *recordingSink) Publish(topic string, payload []byte) {
	s.topics = append(s.topics, topic)
	s.payloads = append(s.payloads, payload)
}

type chanSubscriber struct {
	ch chan []byte
}

func (s *chanSubscriber) Send(payload []byte) error {
	s.ch <- payload
	return nil
}

func (s *chanSubscriber) Close() {}

func TestHubPublisherBroadcastsToTopic(t *testing.T) {
	hub := ws.NewHub()
	sub := &chanSubscriber{ch: make(chan []byte, 1)}
	hub.Register(TopicUpdates, sub)

	pub := NewHubPublisher(hub)
	pub.Publish(TopicUpdates, []byte(`{"total_requests":5}`))

	select {
	case payload := <-sub.ch:
		if string(payload) != `{"total_requests":5}` {
			t.Fatalf("unexpected payload %q", payload)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected hub delivery")
	}
}

func TestHubPublisherNilReceiverIsSafe(t *testing.T) {
	var pub *HubPublisher
	pub.Publish(TopicUpdates, []byte("x"))
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	fan := Fanout{first, nil, second}

	fan.Publish(TopicAlerts, []byte("alert"))

	for i, sink := range []*recordingSink{first, second} {
		if len(sink.topics) != 1 || sink.topics[0] != TopicAlerts {
			t.Fatalf("sink %d missed delivery: %v", i, sink.topics)
		}
		if string(sink.payloads[0]) != "alert" {
			t.Fatalf("sink %d got payload %q", i, sink.payloads[0])
		}
	}
}
