package server

import (
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originOf reduces a URL to its lower-cased scheme://host[:port] form.
// Anything unparsable yields "".
func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// originAllowed accepts requests without an Origin header (non-browser
// clients), the configured public origins, and the daemon's own page when it
// is reached over a loopback address.
func (s *Server) originAllowed(r *http.Request) bool {
	raw := r.Header.Get("Origin")
	if raw == "" {
		return r.Header.Get("Sec-Fetch-Site") != "cross-site"
	}
	o := originOf(raw)
	if o == "" {
		return false
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if originOf(allowed) == o {
			return true
		}
	}
	u, _ := url.Parse(o)
	return strings.EqualFold(u.Host, r.Host) && isLoopbackHost(r.Host)
}

// guard protects state-changing routes: same-origin only, and JSON bodies only
// so a cross-site form or text/plain post cannot reach them without a preflight.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.originAllowed(r) {
			s.log.Warn("rejected cross-origin request", "path", r.URL.Path, "origin", r.Header.Get("Origin"))
			writeJSON(w, http.StatusForbidden, errorBody{Error: "origin not allowed"})
			return
		}
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: "content type must be application/json"})
			return
		}
		next(w, r)
	}
}
