package natsbus

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/swarmlab/hivehub/internal/config"
)

func TestBusStartStop(t *testing.T) {
	dir := t.TempDir()
	bus, err := New(config.NATSConfig{
		Port:    0, // Random port
		DataDir: dir,
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	defer bus.Close()

	url := bus.ClientURL()
	if url == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestEphemeralPorts(t *testing.T) {
	b1, err := New(config.NATSConfig{Port: 0, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create first bus: %v", err)
	}
	defer b1.Close()

	// A second bus on port 0 must bind its own port, not collide on a default
	b2, err := New(config.NATSConfig{Port: 0, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create second bus: %v", err)
	}
	defer b2.Close()

	if b1.ClientURL() == b2.ClientURL() {
		t.Errorf("expected distinct ports, both buses report %s", b1.ClientURL())
	}
}

func TestPubSub(t *testing.T) {
	dir := t.TempDir()
	bus, err := New(config.NATSConfig{
		Port:    0,
		DataDir: dir,
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	defer bus.Close()

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	_, err = client.Subscribe(TopicRoomEvents("p1"), func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.Publish(TopicRoomEvents("p1"), []byte(`{"kind":"chat"}`)); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != `{"kind":"chat"}` {
			t.Errorf("expected frame, got '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishJSON(t *testing.T) {
	dir := t.TempDir()
	bus, err := New(config.NATSConfig{
		Port:    0,
		DataDir: dir,
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	defer bus.Close()

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	_, err = client.Subscribe("test.json", func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	payload := map[string]string{"key": "value"}
	if err := client.PublishJSON("test.json", payload); err != nil {
		t.Fatalf("publish json error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != `{"key":"value"}` {
			t.Errorf("expected json, got '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicRoomEvents("p1"); got != "room.p1.events" {
		t.Errorf("expected room.p1.events, got %s", got)
	}
	if got := TopicRoomAgent("p1", "alice"); got != "room.p1.agent.alice" {
		t.Errorf("expected room.p1.agent.alice, got %s", got)
	}
	// Unsafe identifier characters collapse to underscores
	if got := TopicRoomEvents("my.project v2"); got != "room.my_project_v2.events" {
		t.Errorf("expected sanitized subject, got %s", got)
	}
	if got := TopicRoomAgent("p1", "agent.*>"); got != "room.p1.agent.agent___" {
		t.Errorf("expected sanitized agent token, got %s", got)
	}
}
