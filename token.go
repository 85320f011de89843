package chat_widget

import (
	"net/url"
	"strings"
)

const TokenParam = "token"

// TokenFromURL reads the access token from the query string of the page URL.
// A bare query ("?token=abc" or "token=abc") is accepted too. The second
// return is false when the token is missing or blank.
func TokenFromURL(pageURL string) (string, bool) {
	raw := strings.TrimSpace(pageURL)
	if raw == "" {
		return "", false
	}

	var query string
	switch {
	case strings.HasPrefix(raw, "?"):
		query = raw[1:]
	case !strings.Contains(raw, "?") && !strings.Contains(raw, "://") && strings.Contains(raw, "="):
		query = raw
	default:
		u, err := url.Parse(raw)
		if err != nil {
			return "", false
		}
		query = u.RawQuery
	}

	values, err := url.ParseQuery(query)
	if err != nil && len(values) == 0 {
		return "", false
	}
	token := strings.TrimSpace(values.Get(TokenParam))
	if token == "" {
		return "", false
	}
	return token, true
}
