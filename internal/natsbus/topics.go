package natsbus

import (
	"fmt"
	"strings"
)

// Topic patterns for the room event mirror. Every frame a room broadcasts to
// its WebSocket subscribers is republished here so out-of-process consumers
// (dashboards, notifier bridges, on-host companions) can tap the feed without
// holding a socket.

func TopicRoomEvents(project string) string {
	return fmt.Sprintf("room.%s.events", token(project))
}

func TopicRoomAgent(project, agent string) string {
	return fmt.Sprintf("room.%s.agent.%s", token(project), token(agent))
}

// token makes an arbitrary identifier safe as a single NATS subject token.
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '*', '>':
			return '_'
		}
		return r
	}, s)
}

const (
	TopicRoomsAll = "room.>"
)
