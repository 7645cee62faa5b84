// Package history holds the append-only conversation transcript and
// the summarized/active partition over it. Messages are never deleted
// by summarization; the summarizedUpTo cursor is the only mutation to
// partitioning, and it only moves forward.
package history

import (
	"braid/internal/testutils"
	"braid/pkg/braidtypes"
)

// Conversation is the ordered message transcript. Not safe for
// concurrent use; the controller serializes access.
type Conversation struct {
	messages       []braidtypes.Message
	summarizedUpTo int // count of summarized leading messages
	testMode       bool
}

// NewConversation creates an empty conversation. testMode selects
// deterministic message IDs and timestamps.
func NewConversation(testMode bool) *Conversation {
	return &Conversation{testMode: testMode}
}

// AddUser appends a user message and returns it.
func (c *Conversation) AddUser(text string) braidtypes.Message {
	return c.append(braidtypes.RoleUser, text)
}

// AddAssistant appends an assistant message and returns it.
func (c *Conversation) AddAssistant(text string) braidtypes.Message {
	return c.append(braidtypes.RoleAssistant, text)
}

func (c *Conversation) append(role, text string) braidtypes.Message {
	msg := braidtypes.Message{
		ID:        testutils.GenerateUUID(c.testMode),
		Role:      role,
		Content:   text,
		Index:     len(c.messages),
		Timestamp: testutils.Now(c.testMode),
	}
	c.messages = append(c.messages, msg)
	return msg
}

// RemoveLastAssistant pops the most recent assistant message, for
// regenerate. It fails without mutation if the history is empty or the
// last entry is a user message.
func (c *Conversation) RemoveLastAssistant() bool {
	n := len(c.messages)
	if n == 0 || c.messages[n-1].Role != braidtypes.RoleAssistant {
		return false
	}
	if c.summarizedUpTo >= n {
		return false
	}
	c.messages = c.messages[:n-1]
	return true
}

// RemoveLastExchange pops the trailing user+assistant pair atomically,
// for rollback. It fails without mutation if the trailing two messages
// do not form such a pair.
func (c *Conversation) RemoveLastExchange() bool {
	n := len(c.messages)
	if n < 2 {
		return false
	}
	if c.messages[n-2].Role != braidtypes.RoleUser || c.messages[n-1].Role != braidtypes.RoleAssistant {
		return false
	}
	if c.summarizedUpTo > n-2 {
		return false
	}
	c.messages = c.messages[:n-2]
	return true
}

// RemoveLastUser pops the most recent user message, used when a
// cancelled stream produced no text and the turn is unwound. It fails
// if the last entry is not an unsummarized user message.
func (c *Conversation) RemoveLastUser() bool {
	n := len(c.messages)
	if n == 0 || c.messages[n-1].Role != braidtypes.RoleUser {
		return false
	}
	if c.summarizedUpTo >= n {
		return false
	}
	c.messages = c.messages[:n-1]
	return true
}

// Len returns the total message count, summarized included.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// SummarizedUpTo returns the count of summarized leading messages.
func (c *Conversation) SummarizedUpTo() int {
	return c.summarizedUpTo
}

// ActiveCount returns how many messages are not yet summarized.
func (c *Conversation) ActiveCount() int {
	return len(c.messages) - c.summarizedUpTo
}

// Messages returns a copy of the full transcript.
func (c *Conversation) Messages() []braidtypes.Message {
	out := make([]braidtypes.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ActiveMessages returns a copy of the unsummarized suffix.
func (c *Conversation) ActiveMessages() []braidtypes.Message {
	active := c.messages[c.summarizedUpTo:]
	out := make([]braidtypes.Message, len(active))
	copy(out, active)
	return out
}

// MessagesForSummarization returns a snapshot of active messages up to
// boundary inclusive. A negative boundary means no waypoint constraint:
// all active messages are returned.
func (c *Conversation) MessagesForSummarization(boundary int) []braidtypes.Message {
	end := len(c.messages)
	if boundary >= 0 && boundary+1 < end {
		end = boundary + 1
	}
	if end <= c.summarizedUpTo {
		return nil
	}
	snapshot := c.messages[c.summarizedUpTo:end]
	out := make([]braidtypes.Message, len(snapshot))
	copy(out, snapshot)
	return out
}

// MarkSummarized advances the partition cursor to upTo messages. The
// cursor is monotonic: a stale boundary lower than the current cursor
// is ignored, and the cursor never passes the end of the transcript.
func (c *Conversation) MarkSummarized(upTo int) {
	if upTo > len(c.messages) {
		upTo = len(c.messages)
	}
	if upTo > c.summarizedUpTo {
		c.summarizedUpTo = upTo
	}
}

// Restore replaces the transcript and cursor from a saved session.
func (c *Conversation) Restore(messages []braidtypes.Message, summarizedUpTo int) {
	c.messages = make([]braidtypes.Message, len(messages))
	copy(c.messages, messages)
	if summarizedUpTo < 0 {
		summarizedUpTo = 0
	}
	if summarizedUpTo > len(c.messages) {
		summarizedUpTo = len(c.messages)
	}
	c.summarizedUpTo = summarizedUpTo
}

// Clear empties the conversation.
func (c *Conversation) Clear() {
	c.messages = nil
	c.summarizedUpTo = 0
}
