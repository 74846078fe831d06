package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	corsAllowMethods  = "POST, GET, OPTIONS"
	corsAllowHeaders  = "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms, X-User-Agent, Connect-Content-Encoding, Connect-Accept-Encoding"
	corsExposeHeaders = "Connect-Content-Encoding, Connect-Accept-Encoding"
)

// Origins is a parsed origin allow list. "*" allows every origin; an empty
// list is unconfigured.
type Origins struct {
	wildcard bool
	set      map[string]struct{}
}

func ParseOrigins(allowed []string) Origins {
	o := Origins{set: make(map[string]struct{}, len(allowed))}
	for _, v := range allowed {
		v = normalizeOrigin(v)
		switch v {
		case "":
		case "*":
			o.wildcard = true
		default:
			o.set[v] = struct{}{}
		}
	}
	return o
}

func (o Origins) configured() bool { return o.wildcard || len(o.set) > 0 }

func (o Origins) listed(origin string) bool {
	_, ok := o.set[normalizeOrigin(origin)]
	return ok
}

// AllowsCORS reports whether a cross-origin browser request from origin may
// read responses. Unconfigured lists allow every origin.
func (o Origins) AllowsCORS(origin string) bool {
	return !o.configured() || o.wildcard || o.listed(origin)
}

// CheckWebSocket is a websocket.Upgrader CheckOrigin. Requests without an
// Origin header (non-browser clients) and same-origin pages are accepted;
// other origins must be listed or the list must contain "*".
func (o Origins) CheckWebSocket(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || o.wildcard || o.listed(origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func normalizeOrigin(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

// CORS answers preflight requests and reflects allowed origins. An empty
// list or "*" allows every origin.
func CORS(allowed []string) func(http.Handler) http.Handler {
	origins := ParseOrigins(allowed)
	allowAll := !origins.configured() || origins.wildcard
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			switch {
			case origin != "" && origins.AllowsCORS(origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			case origin == "" && allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
