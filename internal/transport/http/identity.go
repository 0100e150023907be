package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	userIDHeader   = "X-User-ID"
	segmentsHeader = "X-Segments"
)

// SegmentProvider reports the cohorts the visitor of r belongs to.
type SegmentProvider interface {
	Segments(r *http.Request) []string
}

// HeaderSegments reads cohorts from a comma separated request header set by
// the platform in front of this service.
type HeaderSegments struct{}

func (HeaderSegments) Segments(r *http.Request) []string {
	raw := r.Header.Get(segmentsHeader)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SessionCookie issues and reads the anonymous session id.
type SessionCookie struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// ID returns the session id of r, setting a fresh cookie on w when r has none.
func (c SessionCookie) ID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(c.Name); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}
