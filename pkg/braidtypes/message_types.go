// Package braidtypes defines the shared data structures for braid's
// conversation orchestration core. This file contains message and
// conversation-level types used across history, prompt assembly, and
// provider clients.
package braidtypes

import "time"

// Message roles. Only user and assistant messages live in history;
// system content is assembled separately by the prompt builder.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in the conversation history.
// Index is the message's position in the full history and never changes
// once assigned; the summarization cursor partitions messages by index.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
}

// APIMessage is the minimal role/content pair handed to provider clients.
type APIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToAPI converts a Message to the provider wire shape.
func (m Message) ToAPI() APIMessage {
	return APIMessage{Role: m.Role, Content: m.Content}
}
