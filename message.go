package chat_widget

import "strings"

type Role string

// consts role
const (
	User   Role = "user"
	Bot    Role = "bot"
	System Role = "system"
)

// Message is one transcript entry. Once appended it is never mutated.
type Message struct {
	Role   Role     `json:"role"`
	Text   string   `json:"text,omitempty"`
	Images []string `json:"images,omitempty"`
}

// Lines splits the text on embedded newlines. The lines are rendered as
// visual line breaks of a single entry, never as separate messages.
func (m Message) Lines() []string {
	if m.Text == "" {
		return nil
	}
	lines := strings.Split(m.Text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (m Message) HasImages() bool {
	return len(m.Images) > 0
}

type Messages []Message

func (m *Messages) Add(messages ...Message) {
	*m = append(*m, messages...)
}

// QuickReply is a button offered by the server. Title is what the user sees
// (and what is echoed into the transcript), Payload is what gets sent.
type QuickReply struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type QuickReplies []QuickReply

// Clone returns a copy so views can't alias the controller's batch.
func (q QuickReplies) Clone() QuickReplies {
	if len(q) == 0 {
		return nil
	}
	out := make(QuickReplies, len(q))
	copy(out, q)
	return out
}
