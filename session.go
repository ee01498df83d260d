package polymind

import (
	"net/url"
	"strings"
)

// ActiveChatID derives the active chat id from an app path. Chat routes have
// the form /c/<id>, where everything after the prefix is the id; for any
// other path there is no active chat and ok is false. Percent-encoded ids are
// decoded; an id that fails decoding is returned raw rather than discarded.
func ActiveChatID(path string) (id string, ok bool) {
	const prefix = "/c/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return "", false
	}
	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return rest, true
	}
	return decoded, true
}
