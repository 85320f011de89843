package botserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	chat_widget "github.com/wirnat/chat-widget"
)

const testToken = "abc"

func seedServer(t *testing.T, o Options) (*Server, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.CreateClient(ctx, "Acme", testToken)
	require.NoError(t, err)

	_, err = Seed(ctx, store, IntentSources{
		"Emitir Nota Fiscal": {
			Patterns:  []string{"como emitir nota fiscal", "emitir nf"},
			Responses: TextList{"Vá em Vendas > Notas Fiscais.", "Use o menu Notas Fiscais."},
			Images:    []string{"nf1.png", "nf2.png"},
			QuickReplies: chat_widget.QuickReplies{
				{Title: "Sim", Payload: "sim"},
				{Title: "Não", Payload: "nao"},
			},
		},
		"Horário": {
			Patterns:  []string{"horário de funcionamento"},
			Responses: TextList{"Abrimos às 8h.\nFechamos às 18h."},
		},
	}, false, zerolog.Nop())
	require.NoError(t, err)

	if o.Store == nil {
		o.Store = store
	}
	if o.ImagesBaseURL == "" {
		o.ImagesBaseURL = "http://img.test/images/"
	}
	if o.Pick == nil {
		o.Pick = func(n int) int { return 0 }
	}
	return New(o), store
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) json.RawMessage {
	t.Helper()
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Detail
}

func TestChatAuth(t *testing.T) {
	srv, _ := seedServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
		detail string
	}{
		{"empty token", `{"token":"","question":"hi"}`, http.StatusForbidden, `"` + TokenMissingDetail + `"`},
		{"unknown token", `{"token":"zzz","question":"hi"}`, http.StatusForbidden, `"` + TokenInvalidDetail + `"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, srv, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.detail, string(detailOf(t, rec)))
		})
	}
}

func TestChatValidation(t *testing.T) {
	srv, _ := seedServer(t, Options{})

	rec := postChat(t, srv, `{"token":"abc"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var issues []ValidationIssue
	require.NoError(t, json.Unmarshal(detailOf(t, rec), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"body", "question"}, issues[0].Loc)
	assert.Equal(t, "field required", issues[0].Msg)

	rec = postChat(t, srv, `{"token":`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = postChat(t, srv, `{"token":1,"question":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestChatExactMatch(t *testing.T) {
	srv, store := seedServer(t, Options{})

	rec := postChat(t, srv, `{"token":"abc","question":"Como emitir nota fiscal"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reply Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "success", reply.Status)
	assert.Equal(t, "Vá em Vendas > Notas Fiscais.", reply.Response)
	assert.Equal(t, []string{"http://img.test/images/nf1.png", "http://img.test/images/nf2.png"}, reply.Images)
	assert.Equal(t, chat_widget.QuickReplies{{Title: "Sim", Payload: "sim"}, {Title: "Não", Payload: "nao"}}, reply.QuickReplies)
	assert.NotZero(t, reply.ConversationID)

	msgs, err := store.Messages(context.Background(), reply.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Como emitir nota fiscal", msgs[0].Content)
	assert.Equal(t, reply.MessageID, msgs[1].ID)
	assert.Equal(t, SenderBot, msgs[1].Sender)
}

func TestChatPicksParagraph(t *testing.T) {
	srv, _ := seedServer(t, Options{Pick: func(n int) int { return n - 1 }})

	rec := postChat(t, srv, `{"token":"abc","question":"emitir nf"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var reply Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "Use o menu Notas Fiscais.", reply.Response)
}

func TestChatFallback(t *testing.T) {
	srv, _ := seedServer(t, Options{})

	rec := postChat(t, srv, `{"token":"abc","question":"qual a previsão do tempo"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, `"`+FallbackResponse+`"`, string(raw["response"]))
	assert.JSONEq(t, `[]`, string(raw["quick_replies"]))
	_, hasImages := raw["images"]
	assert.False(t, hasImages)
}

func TestChatKeepsConversation(t *testing.T) {
	srv, _ := seedServer(t, Options{})

	var first, second Reply
	rec := postChat(t, srv, `{"token":"abc","question":"emitir nf"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	rec = postChat(t, srv, `{"token":"abc","question":"horário de funcionamento"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Greater(t, second.MessageID, first.MessageID)
}

func TestChatRateLimit(t *testing.T) {
	srv, _ := seedServer(t, Options{RateLimiter: NewRateLimiter(1, 0, 0)})

	rec := postChat(t, srv, `{"token":"abc","question":"emitir nf"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postChat(t, srv, `{"token":"abc","question":"emitir nf"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `"per-minute limit exceeded (1 requests)"`, string(detailOf(t, rec)))
}

type brokenStore struct {
	*MemoryStore
}

func (b brokenStore) AddMessage(ctx context.Context, conversationID int64, sender Sender, content string) (*StoredMessage, error) {
	return nil, errors.New("disk full")
}

func TestChatInternalError(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.CreateClient(context.Background(), "Acme", testToken)
	require.NoError(t, err)
	srv := New(Options{Store: brokenStore{store}})

	rec := postChat(t, srv, `{"token":"abc","question":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var detail string
	require.NoError(t, json.Unmarshal(detailOf(t, rec), &detail))
	assert.True(t, strings.HasPrefix(detail, "An internal error occurred: "), detail)
	assert.Contains(t, detail, "disk full")
}

func TestCORS(t *testing.T) {
	srv, _ := seedServer(t, Options{AllowedOrigins: []string{"http://localhost", "null"}})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, "http://localhost", preflight("http://localhost").Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "null", preflight("null").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight("http://evil.test").Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nf1.png"), []byte("png-bytes"), 0o644))
	srv, _ := seedServer(t, Options{ImagesDir: dir})

	req := httptest.NewRequest(http.MethodGet, "/images/nf1.png", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/images/missing.png", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	srv, _ := seedServer(t, Options{AdminToken: "secret"})
	postChat(t, srv, `{"token":"abc","question":"qual a previsão do tempo"}`)
	postChat(t, srv, `{"token":"abc","question":"emitir nf"}`)

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set(AdminTokenHeader, token)
		}
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, get("/stats/unanswered", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/stats/unanswered", "wrong").Code)

	rec := get("/stats/unanswered", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var unanswered []UnansweredQuestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unanswered))
	require.Len(t, unanswered, 1)
	assert.Equal(t, "qual a previsão do tempo", unanswered[0].Question)

	rec = get("/stats/engagement", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var engagement []ClientEngagement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &engagement))
	require.Len(t, engagement, 1)
	assert.Equal(t, 2, engagement[0].BotResponses)
	assert.Equal(t, 1, engagement[0].FallbackCount)
	assert.Equal(t, float64(50), engagement[0].Assertiveness)
}

func TestStatsDisabledWithoutAdminToken(t *testing.T) {
	srv, _ := seedServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/stats/engagement", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := seedServer(t, Options{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

// The widget controller talking to the real backend over HTTP.
func TestWidgetAgainstServer(t *testing.T) {
	srv, _ := seedServer(t, Options{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	view := chat_widget.NewTranscript()
	c := chat_widget.New(view, "http://localhost/chatbot/?token=abc", chat_widget.Options{Endpoint: ts.URL + "/chat"})
	require.NoError(t, c.Init())

	_, err := c.Submit(context.Background(), "como emitir nota fiscal")
	require.NoError(t, err)
	last, _ := view.Last()
	assert.Equal(t, "Vá em Vendas > Notas Fiscais.", last.Text)
	assert.Len(t, last.Images, 2)
	require.Len(t, view.QuickReplies(), 2)

	_, err = c.SubmitQuickReply(context.Background(), view.QuickReplies()[0])
	require.NoError(t, err)
	msgs := view.Messages()
	assert.Equal(t, chat_widget.Message{Role: chat_widget.User, Text: "Sim"}, msgs[2])
	assert.Equal(t, FallbackResponse, msgs[3].Text)
	assert.Empty(t, view.QuickReplies())

	_, err = c.Submit(context.Background(), "horário de funcionamento")
	require.NoError(t, err)
	last, _ = view.Last()
	assert.Equal(t, []string{"Abrimos às 8h.", "Fechamos às 18h."}, last.Lines())

	bad := chat_widget.NewTranscript()
	denied := chat_widget.New(bad, "?token=nope", chat_widget.Options{Endpoint: ts.URL + "/chat"})
	require.NoError(t, denied.Init())
	out, err := denied.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, out.Status)
	last, _ = bad.Last()
	assert.Equal(t, "Server error: "+TokenInvalidDetail, last.Text)
}
