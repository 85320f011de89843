package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	chat_widget "github.com/wirnat/chat-widget"
	"github.com/wirnat/chat-widget/config"
)

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chat_widget.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := chat_widget.ChatResponse{Status: "success", Response: "you said " + req.Question}
		if req.Question == "menu" {
			resp.QuickReplies = chat_widget.QuickReplies{{Title: "Yes please", Payload: "yes"}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunHeadless(t *testing.T) {
	srv := backend(t)
	cfg := &config.ClientConfig{Endpoint: srv.URL, PageURL: "http://localhost/?token=abc"}

	in := strings.NewReader("hello\n\nmenu\n/reply 1\n/reply 3\n/quit\nignored\n")
	var out bytes.Buffer
	err := runHeadless(context.Background(), cfg, chat_widget.Options{Endpoint: srv.URL}, in, &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "[user]: hello\n[bot]: you said hello\n")
	assert.Contains(t, got, "[bot]: you said menu\n  (1) Yes please\n")
	assert.Contains(t, got, "[user]: Yes please\n[bot]: you said yes\n")
	assert.Contains(t, got, "no quick replies available")
	assert.NotContains(t, got, "ignored")
}

func TestRunHeadlessCommands(t *testing.T) {
	srv := backend(t)
	cfg := &config.ClientConfig{Endpoint: srv.URL, PageURL: "http://localhost/?token=abc"}

	in := strings.NewReader("/help\n/replyx\n")
	var out bytes.Buffer
	require.NoError(t, runHeadless(context.Background(), cfg, chat_widget.Options{Endpoint: srv.URL}, in, &out))

	got := out.String()
	assert.Contains(t, got, "/help      show this help")
	assert.Contains(t, got, "[user]: /replyx\n[bot]: you said /replyx\n")
	assert.NotContains(t, got, "no quick replies available")
}

func TestRunHeadlessLineTooLong(t *testing.T) {
	srv := backend(t)
	cfg := &config.ClientConfig{Endpoint: srv.URL, PageURL: "http://localhost/?token=abc"}

	in := strings.NewReader("hello\n" + strings.Repeat("x", maxLineBytes+1) + "\n")
	var out bytes.Buffer
	err := runHeadless(context.Background(), cfg, chat_widget.Options{Endpoint: srv.URL}, in, &out)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Contains(t, out.String(), "[bot]: you said hello\n")
}

func TestIsCommand(t *testing.T) {
	assert.True(t, isCommand("/reply", "/reply"))
	assert.True(t, isCommand("/reply 2", "/reply"))
	assert.False(t, isCommand("/replyx", "/reply"))
	assert.False(t, isCommand("reply 2", "/reply"))
}

func TestRunHeadlessWithoutToken(t *testing.T) {
	cfg := &config.ClientConfig{Endpoint: "http://localhost:1/chat", PageURL: "http://localhost/"}

	var out bytes.Buffer
	err := runHeadless(context.Background(), cfg, chat_widget.Options{Endpoint: cfg.Endpoint}, strings.NewReader("hi\n"), &out)
	assert.ErrorIs(t, err, chat_widget.ErrMissingToken)
	assert.Contains(t, out.String(), chat_widget.MissingTokenMessage)
}

func TestPickReply(t *testing.T) {
	replies := chat_widget.QuickReplies{{Title: "A", Payload: "a"}, {Title: "B", Payload: "b"}}

	r, err := pickReply(replies, "2")
	require.NoError(t, err)
	assert.Equal(t, "b", r.Payload)

	for _, arg := range []string{"", "0", "3", "x"} {
		_, err := pickReply(replies, arg)
		assert.Error(t, err, arg)
	}
	_, err = pickReply(nil, "1")
	assert.EqualError(t, err, "no quick replies available")
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("CHAT_WIDGET_ENDPOINT", "http://env.test/chat")
	t.Setenv("CHAT_WIDGET_PAGE_URL", "http://localhost/?token=env")

	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--url", "http://localhost/?token=flag", "--env-file", ""}))

	var f rootFlags
	f.pageURL, _ = cmd.Flags().GetString("url")
	cfg, err := loadConfig(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/?token=flag", cfg.PageURL)
	assert.Equal(t, "http://env.test/chat", cfg.Endpoint)
}
