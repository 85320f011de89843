package botserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	chat_widget "github.com/wirnat/chat-widget"
)

const (
	FallbackResponse   = "Sorry, I'm not sure how to help. Could you rephrase?"
	TokenMissingDetail = "Access token not provided."
	TokenInvalidDetail = "Invalid or unauthorized access token."
	InternalErrorFmt   = "An internal error occurred: %s"
	AdminTokenHeader   = "X-Admin-Token"

	maxRequestBytes = 1 << 20
)

type Options struct {
	Store          Store
	Tracker        ConversationTracker // defaults to a StoreTracker over Store
	Threshold      int                 // fuzzy confidence threshold, 0 means 60
	ImagesDir      string              // served under /images when it exists
	ImagesBaseURL  string              // prefix for image names in replies
	AllowedOrigins []string
	RateLimiter    *RateLimiter // nil disables rate limiting
	AdminToken     string       // enables /stats when set
	Logger         *zerolog.Logger
	Pick           func(n int) int // paragraph chooser, random by default
}

// Reply is the success body of POST /chat.
type Reply struct {
	Status         string                   `json:"status"`
	Response       string                   `json:"response"`
	ConversationID int64                    `json:"conversation_id"`
	MessageID      int64                    `json:"message_id"`
	QuickReplies   chat_widget.QuickReplies `json:"quick_replies"`
	Images         []string                 `json:"images,omitempty"`
}

// ValidationIssue is one entry of a 422 detail list.
type ValidationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Server answers chat questions from the intent catalog.
type Server struct {
	echo    *echo.Echo
	store   Store
	tracker ConversationTracker
	matcher *Matcher
	limiter *RateLimiter
	images  string
	admin   string
	pick    func(n int) int
	log     zerolog.Logger
}

func New(o Options) *Server {
	log := zerolog.Nop()
	if o.Logger != nil {
		log = *o.Logger
	}
	log = log.With().Str("component", "botserver").Logger()

	tracker := o.Tracker
	if tracker == nil {
		tracker = NewStoreTracker(o.Store, DefaultConversationWindow)
	}
	pick := o.Pick
	if pick == nil {
		pick = rand.Intn
	}

	s := &Server{
		echo:    echo.New(),
		store:   o.Store,
		tracker: tracker,
		matcher: NewMatcher(o.Store, o.Threshold),
		limiter: o.RateLimiter,
		images:  o.ImagesBaseURL,
		admin:   o.AdminToken,
		pick:    pick,
		log:     log,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = s.log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	if len(o.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     o.AllowedOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		}))
	}

	e.POST("/chat", s.handleChat)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if o.ImagesDir != "" {
		if info, err := os.Stat(o.ImagesDir); err == nil && info.IsDir() {
			e.Static("/images", o.ImagesDir)
			log.Info().Str("dir", o.ImagesDir).Msg("serving static images")
		} else {
			log.Warn().Str("dir", o.ImagesDir).Msg("images directory not found, /images disabled")
		}
	}

	if s.admin != "" {
		stats := e.Group("/stats", s.requireAdmin)
		stats.GET("/unanswered", s.handleUnanswered)
		stats.GET("/engagement", s.handleEngagement)
	}
	return s
}

// ServeHTTP makes the server usable with httptest and custom listeners.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("chat backend listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ====== HANDLERS ======

func (s *Server) handleChat(c echo.Context) error {
	req, err := decodeChatRequest(c.Request().Body)
	if err != nil {
		return err
	}
	reply, err := s.Chat(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) handleUnanswered(c echo.Context) error {
	out, err := s.store.Unanswered(c.Request().Context(), FallbackResponse)
	if err != nil {
		return err
	}
	if out == nil {
		out = []UnansweredQuestion{}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleEngagement(c echo.Context) error {
	out, err := s.store.Engagement(c.Request().Context(), FallbackResponse)
	if err != nil {
		return err
	}
	if out == nil {
		out = []ClientEngagement{}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		got := c.Request().Header.Get(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.admin)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
		}
		return next(c)
	}
}

// errorHandler renders every error as {"detail": ...}. Errors that are not
// *echo.HTTPError become a 500 carrying the error text.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var detail interface{} = fmt.Sprintf(InternalErrorFmt, err.Error())
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		detail = he.Message
	} else {
		s.log.Error().Err(err).Msg("unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if werr := c.JSON(code, map[string]interface{}{"detail": detail}); werr != nil {
		s.log.Error().Err(werr).Msg("failed to write error response")
	}
}

func decodeChatRequest(r io.Reader) (chat_widget.ChatRequest, error) {
	var body struct {
		Token    *string `json:"token"`
		Question *string `json:"question"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxRequestBytes)).Decode(&body); err != nil {
		return chat_widget.ChatRequest{}, echo.NewHTTPError(http.StatusUnprocessableEntity, []ValidationIssue{
			{Loc: []string{"body"}, Msg: "invalid JSON body: " + err.Error(), Type: "value_error.jsondecode"},
		})
	}

	var issues []ValidationIssue
	if body.Token == nil {
		issues = append(issues, ValidationIssue{Loc: []string{"body", "token"}, Msg: "field required", Type: "value_error.missing"})
	}
	if body.Question == nil {
		issues = append(issues, ValidationIssue{Loc: []string{"body", "question"}, Msg: "field required", Type: "value_error.missing"})
	}
	if len(issues) > 0 {
		return chat_widget.ChatRequest{}, echo.NewHTTPError(http.StatusUnprocessableEntity, issues)
	}
	return chat_widget.ChatRequest{Token: *body.Token, Question: *body.Question}, nil
}

// ====== CHAT ======

// Chat authenticates the token, files the question under the client's open
// conversation, answers it from the intent catalog and stores the answer.
func (s *Server) Chat(ctx context.Context, req chat_widget.ChatRequest) (*Reply, error) {
	if req.Token == "" {
		return nil, echo.NewHTTPError(http.StatusForbidden, TokenMissingDetail)
	}
	client, err := s.store.ClientByToken(ctx, req.Token)
	if errors.Is(err, ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusForbidden, TokenInvalidDetail)
	}
	if err != nil {
		return nil, fmt.Errorf("client lookup: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(strconv.FormatInt(client.ID, 10)); err != nil {
			s.log.Warn().Str("client", client.Name).Err(err).Msg("rate limited")
			return nil, echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
		}
	}

	conv, err := s.tracker.Resolve(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	if _, err := s.store.AddMessage(ctx, conv.ID, SenderUser, req.Question); err != nil {
		return nil, fmt.Errorf("store question: %w", err)
	}

	log := s.log.With().Str("client", client.Name).Int64("conversation_id", conv.ID).Logger()
	log.Info().Str("question", req.Question).Msg("new message")

	match, err := s.matcher.Match(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("intent lookup: %w", err)
	}

	text := FallbackResponse
	var replies chat_widget.QuickReplies
	var images []string
	if match.Intent != nil {
		log.Info().Str("intent", match.Intent.Title).Int("score", match.Score).Bool("exact", match.Exact).Msg("intent matched")
		parsed, perr := ParseResponse(match.Intent.Response)
		if perr != nil {
			log.Warn().Err(perr).Str("intent", match.Intent.Title).Msg("ignoring quick replies")
		}
		text = ""
		if n := len(parsed.Paragraphs); n > 0 {
			text = parsed.Paragraphs[s.pick(n)]
		}
		replies = parsed.QuickReplies
		images = parsed.ImageURLs(s.images)
	} else {
		log.Info().Int("score", match.Score).Int("threshold", s.matcher.Threshold()).Msg("no intent matched, using fallback")
	}

	botMsg, err := s.store.AddMessage(ctx, conv.ID, SenderBot, text)
	if err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}
	if err := s.tracker.Touch(ctx, conv); err != nil {
		log.Warn().Err(err).Msg("failed to refresh conversation window")
	}

	if replies == nil {
		replies = chat_widget.QuickReplies{}
	}
	return &Reply{
		Status:         "success",
		Response:       strings.TrimSpace(text),
		ConversationID: conv.ID,
		MessageID:      botMsg.ID,
		QuickReplies:   replies,
		Images:         images,
	}, nil
}
