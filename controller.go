package chat_widget

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrMissingToken    = errors.New("chat widget: access token missing")
	ErrEmptySubmission = errors.New("chat widget: empty submission")
	ErrBusy            = errors.New("chat widget: a request is already in flight")
)

type State string

const (
	StateIdle     State = "idle"
	StateSending  State = "sending"
	StateDisabled State = "disabled"
)

// Sender delivers one question to the backend. *Client is the production
// implementation.
type Sender interface {
	Send(ctx context.Context, token, question string) Outcome
}

// Controller drives a chat widget: Idle -> Sending -> (Success | Failed) -> Idle.
// Only one exchange may be in flight; further submissions are dropped, not
// queued.
type Controller struct {
	view     View
	sender   Sender
	pageURL  string
	log      zerolog.Logger
	lightbox Lightbox

	mu          sync.Mutex
	initialized bool
	token       string
	state       State
	replies     QuickReplies
}

func New(view View, pageURL string, o ...Options) *Controller {
	var opts Options
	if len(o) > 0 {
		opts = o[0]
	}
	return NewWithSender(view, NewClient(opts), pageURL, opts)
}

// NewWithSender is New with a custom transport, mostly for tests and embedding.
func NewWithSender(view View, sender Sender, pageURL string, o ...Options) *Controller {
	var opts Options
	if len(o) > 0 {
		opts = o[0]
	}
	return &Controller{
		view:    view,
		sender:  sender,
		pageURL: pageURL,
		log:     opts.logger().With().Str("component", "controller").Logger(),
		state:   StateIdle,
	}
}

// Init reads the token from the page URL once. Without a token the widget is
// disabled for good and ErrMissingToken is returned.
func (c *Controller) Init() error {
	c.mu.Lock()
	if c.initialized {
		defer c.mu.Unlock()
		if c.token == "" {
			return ErrMissingToken
		}
		return nil
	}
	c.initialized = true
	token, ok := TokenFromURL(c.pageURL)
	if ok {
		c.token = token
	} else {
		c.state = StateDisabled
	}
	c.mu.Unlock()

	if !ok {
		c.log.Error().Msg("access token not found in page url, chat disabled")
		c.append(Message{Role: System, Text: MissingTokenMessage})
		c.view.SetControlsEnabled(false)
		c.view.SetPlaceholder(MissingTokenHint)
		return ErrMissingToken
	}

	c.log.Info().Str("token", maskToken(token)).Msg("access token found")
	c.view.SetControlsEnabled(true)
	c.view.FocusInput()
	return nil
}

// Submit sends typed text. Blank text is ignored silently.
func (c *Controller) Submit(ctx context.Context, text string) (Outcome, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return Outcome{}, ErrEmptySubmission
	}
	return c.exchange(ctx, question, question, true)
}

// SubmitQuickReply echoes the reply title as the user message and sends its
// payload.
func (c *Controller) SubmitQuickReply(ctx context.Context, reply QuickReply) (Outcome, error) {
	if strings.TrimSpace(reply.Payload) == "" {
		return Outcome{}, ErrEmptySubmission
	}
	title := reply.Title
	if strings.TrimSpace(title) == "" {
		title = reply.Payload
	}
	return c.exchange(ctx, title, reply.Payload, false)
}

func (c *Controller) exchange(ctx context.Context, display, payload string, fromInput bool) (Outcome, error) {
	c.mu.Lock()
	if c.token == "" {
		c.mu.Unlock()
		c.log.Warn().Msg("submission without a valid access token ignored")
		return Outcome{}, ErrMissingToken
	}
	if c.state == StateSending {
		c.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	c.state = StateSending
	c.replies = nil
	token := c.token
	c.mu.Unlock()

	c.append(Message{Role: User, Text: display})
	if fromInput {
		c.view.ClearInput()
	}
	c.view.ShowQuickReplies(nil)
	c.view.SetControlsEnabled(false)

	out := c.sender.Send(ctx, token, payload)
	c.render(out)

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()

	c.view.SetControlsEnabled(true)
	c.view.FocusInput()
	return out, nil
}

func (c *Controller) render(out Outcome) {
	c.append(out.Message())
	if !out.OK() {
		return
	}

	replies := out.Response.QuickReplies.Clone()
	c.mu.Lock()
	c.replies = replies
	c.mu.Unlock()

	c.view.ShowQuickReplies(replies.Clone())
	if len(replies) > 0 {
		c.view.ScrollToEnd()
	}
}

func (c *Controller) append(m Message) {
	c.view.AppendMessage(m)
	c.view.ScrollToEnd()
}

// OpenImage shows the overlay for one of the rendered thumbnails.
func (c *Controller) OpenImage(url string) {
	if url == "" {
		return
	}
	p := Preview{URL: url, Caption: ImageCaption}
	c.lightbox.Open(p)
	c.view.ShowPreview(p)
}

func (c *Controller) CloseImage() {
	if c.lightbox.Close() {
		c.view.HidePreview()
	}
}

// ClickOverlay routes a click inside the open overlay.
func (c *Controller) ClickOverlay(target OverlayTarget) {
	if c.lightbox.Click(target) {
		c.view.HidePreview()
	}
}

func (c *Controller) Preview() (Preview, bool) {
	return c.lightbox.Current()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// QuickReplies returns the batch currently on screen.
func (c *Controller) QuickReplies() QuickReplies {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replies.Clone()
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:2] + strings.Repeat("*", len(token)-4) + token[len(token)-2:]
}
