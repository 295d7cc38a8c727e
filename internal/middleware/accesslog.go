package middleware

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const redacted = "REDACTED"

// AccessLog returns chi's request logger writing plain lines to out. Values of
// the named query parameters are replaced before the line is formatted, so
// credentials passed in the URL never reach the log.
func AccessLog(out io.Writer, secretParams ...string) func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(&redactingFormatter{
		next: &chiMiddleware.DefaultLogFormatter{
			Logger:  log.New(out, "", log.LstdFlags),
			NoColor: true,
		},
		params: secretParams,
	})
}

type redactingFormatter struct {
	next   chiMiddleware.LogFormatter
	params []string
}

func (f *redactingFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	if r.URL == nil || r.URL.RawQuery == "" {
		return f.next.NewLogEntry(r)
	}
	query, changed := redactQuery(r.URL.RawQuery, f.params)
	if !changed {
		return f.next.NewLogEntry(r)
	}

	clone := r.Clone(r.Context())
	clone.URL.RawQuery = query
	clone.RequestURI = clone.URL.RequestURI()
	return f.next.NewLogEntry(clone)
}

// redactQuery masks the given parameters in rawQuery. A query that does not
// parse is dropped entirely.
func redactQuery(rawQuery string, params []string) (string, bool) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return redacted, true
	}
	changed := false
	for _, p := range params {
		for key := range values {
			if strings.EqualFold(key, p) {
				values[key] = []string{redacted}
				changed = true
			}
		}
	}
	if !changed {
		return rawQuery, false
	}
	return values.Encode(), true
}
