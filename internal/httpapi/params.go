package httpapi

import (
	"net/url"
	"strings"
)

// identifierKeys in precedence order. Telegram Mini App launches deliver
// the identifier as tgWebAppStartParam, which wins over the uuid and
// legacy id parameters when several are present.
var identifierKeys = []string{"tgWebAppStartParam", "uuid", "id"}

// IdentifierFromQuery resolves which merged message a viewer page should
// show. Blank values fall through to the next parameter.
func IdentifierFromQuery(values url.Values) (string, bool) {
	for _, key := range identifierKeys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v, true
		}
	}
	return "", false
}
