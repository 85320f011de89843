package chat_widget

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultEndpoint = "http://localhost:8000/chat"

	MissingTokenMessage  = "ERROR: access token not provided in the URL. The chat cannot be started."
	MissingTokenHint     = "Access denied. Provide a token in the URL."
	ServerErrorFormat    = "Server error: %s"
	UnknownServerError   = "Unknown error"
	CommunicationFailure = "Failed to communicate with the server."
	ImageCaption         = "Bot response image"
)

type Options struct {
	Endpoint       string        // URL of the chat backend, DefaultEndpoint when empty
	HTTPClient     *http.Client  // nil uses a client without timeout
	RequestTimeout time.Duration // 0 = wait until the transport gives up
	Middlewares    []Middleware  // extra outbound middleware, run after the built-ins
	Logger         *zerolog.Logger
}

func (o Options) endpoint() string {
	if o.Endpoint == "" {
		return DefaultEndpoint
	}
	return o.Endpoint
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// ChatRequest is the body sent to the backend.
type ChatRequest struct {
	Token    string `json:"token"`
	Question string `json:"question"`
}

// ChatResponse is the success body. Status, ConversationID and MessageID are
// informational and never rendered.
type ChatResponse struct {
	Status         string       `json:"status,omitempty"`
	Response       string       `json:"response"`
	Images         []string     `json:"images,omitempty"`
	QuickReplies   QuickReplies `json:"quick_replies,omitempty"`
	ConversationID int64        `json:"conversation_id,omitempty"`
	MessageID      int64        `json:"message_id,omitempty"`
}

// ErrorResponse is the body of a non-success reply. Detail is kept raw
// because validation errors carry a list instead of a string.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail,omitempty"`
}
