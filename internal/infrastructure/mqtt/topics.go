package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every HireHub topic.
const TopicPrefix = "hirehub"

// Topics builds HireHub MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.SessionState("3f2a")  // hirehub/session/3f2a/state
type Topics struct{}

// SessionState returns the retained state topic of a session.
func (Topics) SessionState(sessionID string) string {
	return fmt.Sprintf("%s/session/%s/state", TopicPrefix, sessionID)
}

// SessionCommand returns the command topic of a session.
func (Topics) SessionCommand(sessionID string) string {
	return fmt.Sprintf("%s/session/%s/command", TopicPrefix, sessionID)
}

// AllSessionCommands matches the command topic of every session.
//
// Pattern: hirehub/session/+/command
func (Topics) AllSessionCommands() string {
	return TopicPrefix + "/session/+/command"
}

// SystemStatus returns the Core online/offline topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// SessionIDFromTopic extracts the session id from a session topic. It
// reports false for any other topic.
func SessionIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "session" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
