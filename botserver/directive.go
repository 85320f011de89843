package botserver

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	chat_widget "github.com/wirnat/chat-widget"
)

const (
	QuickRepliesDirective = "🚀 Quick Replies: "
	ImagesDirective       = "🖼️ Imagens relacionadas: "
)

var (
	quickRepliesPattern = regexp.MustCompile(`(?s)🚀 Quick Replies: (\[.*?\])`)
	imagesPattern       = regexp.MustCompile(`🖼\x{FE0F}? (?:Imagens relacionadas|Related images): ([^\n]+)`)
)

// ParsedResponse is a stored intent response with its directives pulled out.
type ParsedResponse struct {
	Paragraphs   []string
	QuickReplies chat_widget.QuickReplies
	Images       []string
}

// ParseResponse extracts the quick reply and image directives and splits the
// remaining text into candidate paragraphs. A quick reply directive with bad
// JSON is left in the text and reported through err; the rest of the result
// is still usable.
func ParseResponse(text string) (ParsedResponse, error) {
	var out ParsedResponse
	var err error

	if m := quickRepliesPattern.FindStringSubmatch(text); m != nil {
		var replies chat_widget.QuickReplies
		if jerr := json.Unmarshal([]byte(m[1]), &replies); jerr != nil {
			err = fmt.Errorf("invalid quick replies JSON: %w", jerr)
		} else {
			out.QuickReplies = replies
			text = strings.TrimSpace(quickRepliesPattern.ReplaceAllString(text, ""))
		}
	}

	if m := imagesPattern.FindStringSubmatch(text); m != nil {
		for _, name := range strings.Split(m[1], ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Images = append(out.Images, name)
			}
		}
		text = strings.TrimSpace(imagesPattern.ReplaceAllString(text, ""))
	}

	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out.Paragraphs = append(out.Paragraphs, p)
		}
	}
	return out, err
}

// ImageURLs prefixes every image name with base.
func (p ParsedResponse) ImageURLs(base string) []string {
	if len(p.Images) == 0 {
		return nil
	}
	urls := make([]string, len(p.Images))
	for i, name := range p.Images {
		urls[i] = base + name
	}
	return urls
}

// ComposeResponse is the inverse of ParseResponse: paragraphs separated by
// blank lines followed by the image and quick reply directives.
func ComposeResponse(paragraphs []string, images []string, replies chat_widget.QuickReplies) (string, error) {
	text := strings.Join(paragraphs, "\n\n")
	if len(images) > 0 {
		text += "\n\n" + ImagesDirective + strings.Join(images, ", ")
	}
	if len(replies) > 0 {
		data, err := json.Marshal(replies)
		if err != nil {
			return "", err
		}
		text += "\n\n" + QuickRepliesDirective + string(data)
	}
	return text, nil
}
