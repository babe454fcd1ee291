package websocket

import "strings"

// MessageTypeSubscribe restricts a client to the listed message types: {"types": ["a", "b"]}.
// An empty list subscribes to everything again.
const MessageTypeSubscribe = "subscribe"

func (c *Client) subscribe(data map[string]any) {
	topics := make(map[string]bool)
	if raw, ok := data["types"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				topics[strings.TrimSpace(s)] = true
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(topics) == 0 {
		c.topics = nil
		return
	}
	c.topics = topics
}

// wants reports whether the client subscribed to messageType
func (c *Client) wants(messageType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics == nil || c.topics[messageType]
}
