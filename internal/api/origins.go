package api

import "strings"

// AllowedOrigins is used for CORS and WebSocket checks when no origins are
// configured
var AllowedOrigins = []string{
	"http://localhost",
	"http://localhost:3000",
	"http://localhost:8080",
	"http://127.0.0.1:3000",
}

// OriginChecker decides whether browser origins may talk to the server.
// Plain-http localhost on any port is always accepted for development.
type OriginChecker struct {
	allowed []string
	any     bool
}

// NewOriginChecker uses origins, or AllowedOrigins when empty. A "*" entry
// accepts every origin.
func NewOriginChecker(origins []string) *OriginChecker {
	if len(origins) == 0 {
		origins = AllowedOrigins
	}
	oc := &OriginChecker{allowed: origins}
	for _, o := range origins {
		if o == "*" {
			oc.any = true
		}
	}
	return oc
}

// Origins returns the allow list
func (oc *OriginChecker) Origins() []string { return oc.allowed }

// Allowed reports whether origin may connect
func (oc *OriginChecker) Allowed(origin string) bool {
	switch {
	case origin == "":
		return false
	case oc.any, isLocalDevOrigin(origin):
		return true
	}
	for _, o := range oc.allowed {
		if o == origin {
			return true
		}
	}
	return false
}

func isLocalDevOrigin(origin string) bool {
	rest, ok := strings.CutPrefix(origin, "http://localhost")
	return ok && (rest == "" || strings.HasPrefix(rest, ":"))
}
