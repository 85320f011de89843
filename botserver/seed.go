package botserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	chat_widget "github.com/wirnat/chat-widget"
)

// TextList accepts either a JSON string or a list of strings.
type TextList []string

func (l *TextList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = TextList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// IntentSource is one entry of an intent JSON file, keyed by title.
type IntentSource struct {
	Patterns     []string                 `json:"patterns"`
	Responses    TextList                 `json:"responses"`
	Images       []string                 `json:"images,omitempty"`
	QuickReplies chat_widget.QuickReplies `json:"quick_replies,omitempty"`
}

// ResponseText renders the source into the stored response format.
func (s IntentSource) ResponseText() (string, error) {
	return ComposeResponse(s.Responses, s.Images, s.QuickReplies)
}

// Variations returns the non blank patterns lower-cased and trimmed.
func (s IntentSource) Variations() []string {
	out := make([]string, 0, len(s.Patterns))
	for _, p := range s.Patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type IntentSources map[string]IntentSource

// Merge copies other into s. Titles already present are overwritten.
func (s IntentSources) Merge(other IntentSources) []string {
	var overwritten []string
	for title, src := range other {
		if _, ok := s[title]; ok {
			overwritten = append(overwritten, title)
		}
		s[title] = src
	}
	sort.Strings(overwritten)
	return overwritten
}

// LoadIntentDir reads every *.json file of dir in name order. Unreadable or
// malformed files are logged and skipped; a later file overrides a title
// defined by an earlier one.
func LoadIntentDir(dir string, log zerolog.Logger) (IntentSources, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading intents dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .json files in %s", dir)
	}
	sort.Strings(files)

	all := make(IntentSources)
	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping intents file")
			continue
		}
		var sources IntentSources
		if err := json.Unmarshal(data, &sources); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping malformed intents file")
			continue
		}
		for _, title := range all.Merge(sources) {
			log.Warn().Str("file", path).Str("intent", title).Msg("intent overrides an earlier definition")
		}
	}
	if len(all) == 0 {
		return nil, errors.New("no valid intents loaded")
	}
	return all, nil
}

type SeedResult struct {
	Total             int `json:"total"`
	Added             int `json:"added"`
	Skipped           int `json:"skipped"`
	Failed            int `json:"failed"`
	Variations        int `json:"variations"`
	ClearedIntents    int `json:"cleared_intents"`
	ClearedVariations int `json:"cleared_variations"`
}

// Seed writes sources into the store. With clear set the catalog is wiped
// first and a failing wipe aborts; otherwise titles already stored are left
// untouched. A failure on one intent is logged and the rest still load.
func Seed(ctx context.Context, store Store, sources IntentSources, clear bool, log zerolog.Logger) (SeedResult, error) {
	res := SeedResult{Total: len(sources)}

	if clear {
		intents, variations, err := store.ClearIntents(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to clear existing intents: %w", err)
		}
		res.ClearedIntents, res.ClearedVariations = intents, variations
		log.Info().Int("intents", intents).Int("variations", variations).Msg("cleared intent catalog")
	}

	titles := make([]string, 0, len(sources))
	for title := range sources {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	for _, title := range titles {
		src := sources[title]
		if !clear {
			existing, err := store.IntentByTitle(ctx, title)
			if err == nil {
				log.Debug().Str("intent", title).Int64("id", existing.ID).Msg("intent exists, skipping")
				res.Skipped++
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return res, err
			}
		}

		text, err := src.ResponseText()
		if err != nil {
			log.Error().Err(err).Str("intent", title).Msg("failed to render intent response")
			res.Failed++
			continue
		}
		variations := src.Variations()
		if _, err := store.CreateIntent(ctx, title, text, variations); err != nil {
			log.Error().Err(err).Str("intent", title).Msg("failed to add intent")
			res.Failed++
			continue
		}
		res.Added++
		res.Variations += len(variations)
	}

	log.Info().
		Int("total", res.Total).
		Int("added", res.Added).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int("variations", res.Variations).
		Msg("intent seeding finished")
	return res, nil
}

// IntentDefinition is an intent declared in Go code.
type IntentDefinition interface {
	Code() string
	// Description lists the phrasings that trigger the intent.
	Description() []string
	Responses() []string
}

// ImageIntent is implemented by definitions that attach images.
type ImageIntent interface {
	Images() []string
}

// QuickReplyIntent is implemented by definitions that offer quick replies.
type QuickReplyIntent interface {
	QuickReplies() chat_widget.QuickReplies
}

// SourcesFromDefinitions converts Go declared intents into IntentSources.
func SourcesFromDefinitions(defs ...IntentDefinition) IntentSources {
	out := make(IntentSources, len(defs))
	for _, d := range defs {
		src := IntentSource{Patterns: d.Description(), Responses: d.Responses()}
		if i, ok := d.(ImageIntent); ok {
			src.Images = i.Images()
		}
		if q, ok := d.(QuickReplyIntent); ok {
			src.QuickReplies = q.QuickReplies()
		}
		out[d.Code()] = src
	}
	return out
}
