package server

import (
	"net/http"

	"microblog/internal/util"
	"microblog/pkg/domain"
)

const (
	sessionCookieName = "microblog_session"
	flashCookieName   = "microblog_flash"
)

// flashScope picks the queue flash messages are stored under: the session
// token when the caller is logged in, otherwise an anonymous flash cookie
// created on demand.
func (s *Server) flashScope(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if c, err := r.Cookie(flashCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	scope := util.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    scope,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return scope
}

func (s *Server) addFlash(w http.ResponseWriter, r *http.Request, level domain.FlashLevel, message string) {
	scope := s.flashScope(w, r)
	if err := s.flashes.Push(scope, domain.FlashMessage{Level: level, Message: message}); err != nil {
		util.LoggerFromContext(r.Context()).Warn("push flash", "err", err)
	}
}

// popFlashes drains pending messages without creating a new scope.
func (s *Server) popFlashes(r *http.Request) []domain.FlashMessage {
	var scopes []string
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		scopes = append(scopes, c.Value)
	}
	if c, err := r.Cookie(flashCookieName); err == nil && c.Value != "" {
		scopes = append(scopes, c.Value)
	}
	var out []domain.FlashMessage
	for _, scope := range scopes {
		msgs, err := s.flashes.Pop(scope)
		if err != nil {
			util.LoggerFromContext(r.Context()).Warn("pop flashes", "err", err)
			continue
		}
		out = append(out, msgs...)
	}
	return out
}
