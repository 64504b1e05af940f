package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"

	"microblog/internal/forms"
	"microblog/internal/util"
	"microblog/pkg/domain"
)

// pages that can be rendered; each is combined with the base layout.
var pageTemplates = []string{
	"index.html",
	"tweet_list.html",
	"tweet_form.html",
	"tweet_confirm_delete.html",
	"register.html",
	"login.html",
	"search.html",
}

func parseTemplates(htmlDir string) (map[string]*template.Template, error) {
	base := filepath.Join(htmlDir, "base.html")
	cache := make(map[string]*template.Template, len(pageTemplates))
	for _, page := range pageTemplates {
		t, err := template.ParseFiles(base, filepath.Join(htmlDir, page))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		cache[page] = t
	}
	return cache, nil
}

// tweetView augments a tweet with everything the templates need.
type tweetView struct {
	domain.Tweet
	OwnerName string
	MediaURL  string
	Mine      bool
}

// templateData is the context handed to every page template.
type templateData struct {
	CurrentUser *domain.User
	Flashes     []domain.FlashMessage
	Tweets      []tweetView
	Tweet       *tweetView
	Form        map[string]string
	Errors      forms.Errors
	Query       string
}

// render writes a page. Flash messages queued for the caller's scope are
// consumed here, so they appear exactly once.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data *templateData) {
	if data == nil {
		data = &templateData{}
	}
	if data.Form == nil {
		data.Form = map[string]string{}
	}
	data.Flashes = append(data.Flashes, s.popFlashes(r)...)

	t, ok := s.templates[page]
	if !ok {
		s.serverError(w, r, fmt.Errorf("unknown template %q", page))
		return
	}
	// Render to a buffer first so a template error yields a clean 500
	// instead of a half-written page.
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		s.serverError(w, r, fmt.Errorf("render %s: %w", page, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	util.LoggerFromContext(r.Context()).Error("internal error", "path", r.URL.Path, "err", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// tweetViews resolves owner usernames and media URLs for rendering.
func (s *Server) tweetViews(r *http.Request, tweets []domain.Tweet, current *domain.User) []tweetView {
	ctx := r.Context()
	names := make(map[string]string)
	views := make([]tweetView, 0, len(tweets))
	for _, t := range tweets {
		name, ok := names[t.OwnerID]
		if !ok {
			if owner, found, err := s.app.UserByID(ctx, t.OwnerID); err == nil && found {
				name = owner.Username
			} else {
				name = "unknown"
			}
			names[t.OwnerID] = name
		}
		views = append(views, tweetView{
			Tweet:     t,
			OwnerName: name,
			MediaURL:  s.app.MediaURL(ctx, t),
			Mine:      current != nil && current.ID == t.OwnerID,
		})
	}
	return views
}
