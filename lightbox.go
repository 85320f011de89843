package chat_widget

import "sync"

// Preview is the full-size image shown by the overlay.
type Preview struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

type OverlayTarget int

const (
	OverlayBackground OverlayTarget = iota
	OverlayImage
	OverlayCloseButton
)

func (t OverlayTarget) String() string {
	switch t {
	case OverlayBackground:
		return "background"
	case OverlayImage:
		return "image"
	case OverlayCloseButton:
		return "close"
	default:
		return "unknown"
	}
}

// Lightbox tracks the image overlay. A click on the background or the close
// control dismisses it, a click on the image itself does not.
type Lightbox struct {
	mu      sync.RWMutex
	open    bool
	current Preview
}

func (l *Lightbox) Open(p Preview) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = true
	l.current = p
}

// Close reports whether the overlay was open.
func (l *Lightbox) Close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	wasOpen := l.open
	l.open = false
	l.current = Preview{}
	return wasOpen
}

// Click handles a click inside the overlay and reports whether it closed.
func (l *Lightbox) Click(target OverlayTarget) bool {
	switch target {
	case OverlayBackground, OverlayCloseButton:
		return l.Close()
	default:
		return false
	}
}

func (l *Lightbox) Current() (Preview, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current, l.open
}
