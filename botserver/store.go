package botserver

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Client is a tenant allowed to talk to the bot, identified by its access token.
type Client struct {
	ID          int64     `json:"client_id"`
	Name        string    `json:"client_name"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type Conversation struct {
	ID        int64     `json:"conversation_id"`
	ClientID  int64     `json:"client_id"`
	StartTime time.Time `json:"start_time"`
}

type StoredMessage struct {
	ID             int64     `json:"message_id"`
	ConversationID int64     `json:"conversation_id"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// Intent is a stored answer. Response may carry quick reply and image
// directives, see ParseResponse.
type Intent struct {
	ID       int64  `json:"intent_id"`
	Title    string `json:"title"`
	Response string `json:"response"`
}

// Variation is one phrasing that triggers an intent, stored lower-cased.
type Variation struct {
	ID       int64  `json:"variation_id"`
	IntentID int64  `json:"intent_id"`
	Text     string `json:"variation"`
}

// UnansweredQuestion is a user message the bot answered with the fallback.
type UnansweredQuestion struct {
	ClientName string    `json:"client_name"`
	Question   string    `json:"question"`
	AskedAt    time.Time `json:"asked_at"`
}

type ClientEngagement struct {
	ClientName         string  `json:"client_name"`
	TotalConversations int     `json:"total_conversations"`
	TotalMessages      int     `json:"total_messages"`
	BotResponses       int     `json:"bot_responses"`
	FallbackCount      int     `json:"fallback_count"`
	Assertiveness      float64 `json:"assertiveness"`
}

// Store persists clients, conversations, messages and the intent catalog.
// Implementations must be safe for concurrent use.
type Store interface {
	CreateClient(ctx context.Context, name, token string) (*Client, error)
	ClientByToken(ctx context.Context, token string) (*Client, error)
	ClientByName(ctx context.Context, name string) (*Client, error)
	SetClientToken(ctx context.Context, clientID int64, token string) error

	CreateConversation(ctx context.Context, clientID int64) (*Conversation, error)
	LatestConversation(ctx context.Context, clientID int64) (*Conversation, error)
	HasMessageSince(ctx context.Context, conversationID int64, since time.Time) (bool, error)

	AddMessage(ctx context.Context, conversationID int64, sender Sender, content string) (*StoredMessage, error)
	Messages(ctx context.Context, conversationID int64) ([]StoredMessage, error)

	CreateIntent(ctx context.Context, title, response string, variations []string) (*Intent, error)
	IntentByTitle(ctx context.Context, title string) (*Intent, error)
	IntentByVariation(ctx context.Context, variation string) (*Intent, error)
	Intent(ctx context.Context, id int64) (*Intent, error)
	Variations(ctx context.Context) ([]Variation, error)
	ClearIntents(ctx context.Context) (intents int, variations int, err error)

	Unanswered(ctx context.Context, fallback string) ([]UnansweredQuestion, error)
	Engagement(ctx context.Context, fallback string) ([]ClientEngagement, error)

	Close() error
}

func assertiveness(botResponses, fallbacks int) float64 {
	if botResponses == 0 {
		return 0
	}
	return float64(botResponses-fallbacks) / float64(botResponses) * 100
}
