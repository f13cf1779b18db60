package middleware

import (
	"context"
	"net/http"
	"path"
	"strings"
)

// CoachSitePrefix is the page tree served to the coaches host.
const CoachSitePrefix = "/coach-site"

var coachHostPassthrough = []string{"/api", "/_next", "/static", "/ws", "/health", "/metrics"}

type coachHostKey struct{}

// IsCoachHost reports whether the request arrived on the coaches host.
func IsCoachHost(ctx context.Context) bool {
	v, _ := ctx.Value(coachHostKey{}).(bool)
	return v
}

// CoachHost rewrites page requests arriving on a host starting with prefix
// (e.g. coaches.lovedoctor.in) to the coach page tree. API, asset and file
// requests pass through unchanged.
func CoachHost(prefix string) func(http.Handler) http.Handler {
	prefix = strings.ToLower(prefix)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if prefix == "" || !strings.HasPrefix(requestHost(r), prefix) {
				next.ServeHTTP(w, r)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), coachHostKey{}, true))
			if rewrite, ok := coachSitePath(r.URL.Path); ok {
				r.URL.Path = rewrite
				r.URL.RawPath = ""
			}
			next.ServeHTTP(w, r)
		})
	}
}

func coachSitePath(p string) (string, bool) {
	if p == CoachSitePrefix || strings.HasPrefix(p, CoachSitePrefix+"/") {
		return "", false
	}
	for _, pass := range coachHostPassthrough {
		if p == pass || strings.HasPrefix(p, pass+"/") {
			return "", false
		}
	}
	if strings.Contains(path.Base(p), ".") {
		return "", false
	}
	if p == "/" || p == "" {
		return CoachSitePrefix, true
	}
	return CoachSitePrefix + p, true
}
