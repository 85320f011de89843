package botserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	chat_widget "github.com/wirnat/chat-widget"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadIntentDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{
		"Greeting": {"patterns": ["Hi", "hello"], "responses": ["Hello!", "Hey!"]},
		"Hours": {"patterns": ["opening hours"], "responses": "We open at 8."}
	}`)
	writeFile(t, dir, "b.json", `{"Greeting": {"patterns": ["hey"], "responses": ["Overridden"]}}`)
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "notes.txt", `ignored`)

	sources, err := LoadIntentDir(dir, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, TextList{"Overridden"}, sources["Greeting"].Responses)
	assert.Equal(t, TextList{"We open at 8."}, sources["Hours"].Responses)
}

func TestLoadIntentDirEmpty(t *testing.T) {
	_, err := LoadIntentDir(t.TempDir(), zerolog.Nop())
	assert.Error(t, err)

	_, err = LoadIntentDir(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())
	assert.Error(t, err)
}

func TestIntentSourceVariations(t *testing.T) {
	src := IntentSource{Patterns: []string{"  Hello There ", "", "  "}}
	assert.Equal(t, []string{"hello there"}, src.Variations())
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sources := IntentSources{
		"Greeting": {
			Patterns:     []string{"Hi", "hello"},
			Responses:    TextList{"Hello!"},
			Images:       []string{"wave.png"},
			QuickReplies: chat_widget.QuickReplies{{Title: "Help", Payload: "help"}},
		},
		"Hours": {Patterns: []string{"opening hours"}, Responses: TextList{"8 to 18."}},
	}

	res, err := Seed(ctx, store, sources, false, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Total: 2, Added: 2, Variations: 3}, res)

	in, err := store.IntentByVariation(ctx, "hi")
	require.NoError(t, err)
	parsed, err := ParseResponse(in.Response)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello!"}, parsed.Paragraphs)
	assert.Equal(t, []string{"wave.png"}, parsed.Images)
	assert.Equal(t, "help", parsed.QuickReplies[0].Payload)

	// titles already stored are skipped
	res, err = Seed(ctx, store, sources, false, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.Added)

	// clearing first replaces the catalog
	res, err = Seed(ctx, store, IntentSources{"Hours": sources["Hours"]}, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, res.ClearedIntents)
	assert.Equal(t, 3, res.ClearedVariations)
	assert.Equal(t, 1, res.Added)
	_, err = store.IntentByTitle(ctx, "Greeting")
	assert.ErrorIs(t, err, ErrNotFound)
}

type waveIntent struct{}

func (waveIntent) Code() string          { return "wave" }
func (waveIntent) Description() []string { return []string{"wave at me"} }
func (waveIntent) Responses() []string   { return []string{"👋"} }
func (waveIntent) Images() []string      { return []string{"wave.gif"} }

func TestSourcesFromDefinitions(t *testing.T) {
	sources := SourcesFromDefinitions(waveIntent{})
	require.Contains(t, sources, "wave")
	assert.Equal(t, []string{"wave at me"}, sources["wave"].Patterns)
	assert.Equal(t, []string{"wave.gif"}, sources["wave"].Images)
	assert.Empty(t, sources["wave"].QuickReplies)
}
