package chat_widget

import (
	"fmt"
	"io"
	"sync"
)

// Transcript is an in-memory View. It renders nothing; it records what a
// real surface would show, which makes it the headless widget and the test
// double at the same time.
type Transcript struct {
	mu              sync.RWMutex
	messages        Messages
	controlsEnabled bool
	controlHistory  []bool
	placeholder     string
	input           string
	focusCount      int
	scrollCount     int
	replies         QuickReplies
	preview         *Preview
	subscribers     []func(Message)
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Subscribe registers fn to be called after every appended message.
func (t *Transcript) Subscribe(fn func(Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}

func (t *Transcript) AppendMessage(m Message) {
	t.mu.Lock()
	m.Images = append([]string(nil), m.Images...)
	t.messages.Add(m)
	subs := append([]func(Message){}, t.subscribers...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(m)
	}
}

func (t *Transcript) ScrollToEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scrollCount++
}

func (t *Transcript) SetControlsEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.controlsEnabled = enabled
	t.controlHistory = append(t.controlHistory, enabled)
}

func (t *Transcript) SetPlaceholder(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.placeholder = text
}

// SetInput simulates typing into the input field.
func (t *Transcript) SetInput(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = text
}

func (t *Transcript) ClearInput() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = ""
}

func (t *Transcript) FocusInput() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focusCount++
}

func (t *Transcript) ShowQuickReplies(replies QuickReplies) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = replies.Clone()
}

func (t *Transcript) ShowPreview(p Preview) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preview = &p
}

func (t *Transcript) HidePreview() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preview = nil
}

// ============================== ACCESSORS ==============================

func (t *Transcript) Messages() Messages {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(Messages, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

func (t *Transcript) ControlsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.controlsEnabled
}

// ControlHistory lists every SetControlsEnabled call in order.
func (t *Transcript) ControlHistory() []bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]bool(nil), t.controlHistory...)
}

func (t *Transcript) Placeholder() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.placeholder
}

func (t *Transcript) Input() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.input
}

func (t *Transcript) FocusCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.focusCount
}

func (t *Transcript) ScrollCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scrollCount
}

func (t *Transcript) QuickReplies() QuickReplies {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.replies.Clone()
}

func (t *Transcript) Preview() (Preview, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.preview == nil {
		return Preview{}, false
	}
	return *t.preview, true
}

// Export writes the transcript as plain text, one "[role]: line" per line.
func (t *Transcript) Export(w io.Writer) error {
	for _, m := range t.Messages() {
		if err := WriteMessage(w, m); err != nil {
			return err
		}
	}
	return nil
}

// WriteMessage renders a single entry the way Export does.
func WriteMessage(w io.Writer, m Message) error {
	lines := m.Lines()
	if len(lines) == 0 && !m.HasImages() {
		lines = []string{""}
	}
	for i, line := range lines {
		prefix := fmt.Sprintf("[%s]: ", m.Role)
		if i > 0 {
			prefix = fmt.Sprintf("%*s", len(prefix), "")
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", prefix, line); err != nil {
			return err
		}
	}
	for _, img := range m.Images {
		if _, err := fmt.Fprintf(w, "  [image] %s\n", img); err != nil {
			return err
		}
	}
	return nil
}
