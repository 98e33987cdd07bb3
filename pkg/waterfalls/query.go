package waterfalls

import (
	"net/url"
	"strings"
)

// QueryParam is a single query string entry. Params are encoded in the
// order given.
type QueryParam struct {
	Key   string
	Value string
}

func encodeQuery(params []QueryParam) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

func buildURL(base, path string, params []QueryParam) string {
	if len(params) == 0 {
		return base + path
	}
	return base + path + "?" + encodeQuery(params)
}
