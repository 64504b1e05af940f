// Package server exposes the HTML surface: request handlers orchestrate the
// input validators and the application core, then render a page or redirect.
package server

import (
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"microblog/internal/app"
	"microblog/internal/forms"
	"microblog/internal/util"
	"microblog/pkg/domain"
	"microblog/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App               *app.App
	Flashes           store.FlashStore
	HTMLDir           string
	SessionTTL        time.Duration
	MaxUploadBytes    int64
	AllowedExtensions []string
	// MediaDir, when set, is served under /media/ for the local file store.
	MediaDir string
}

// Server exposes the HTML endpoints of the application.
type Server struct {
	app               *app.App
	flashes           store.FlashStore
	mux               *http.ServeMux
	templates         map[string]*template.Template
	sessionTTL        time.Duration
	maxUploadBytes    int64
	allowedExtensions map[string]struct{}
}

// New constructs the server with templates parsed and routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app is required")
	}
	flashes := cfg.Flashes
	if flashes == nil {
		flashes = store.NewMemoryFlashStore()
	}
	htmlDir := cfg.HTMLDir
	if htmlDir == "" {
		htmlDir = "./web/templates"
	}
	templates, err := parseTemplates(htmlDir)
	if err != nil {
		return nil, err
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	s := &Server{
		app:               cfg.App,
		flashes:           flashes,
		mux:               http.NewServeMux(),
		templates:         templates,
		sessionTTL:        sessionTTL,
		maxUploadBytes:    normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedExtensions: normalizeExtensions(cfg.AllowedExtensions),
	}
	s.routes(cfg.MediaDir)
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithMetrics(util.WithSecurityHeaders(s.mux))))
}

func (s *Server) routes(mediaDir string) {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// tweets
	s.mux.HandleFunc("/tweets", s.handleTweetList)
	s.mux.Handle("/tweets/new", s.authenticated(s.handleTweetCreate))
	s.mux.Handle("/tweets/", s.authenticated(s.handleTweetByID))
	s.mux.HandleFunc("/search", s.handleSearch)

	// accounts
	s.mux.HandleFunc("/register", s.handleRegister)
	s.mux.HandleFunc("/login", s.handleLogin)
	s.mux.HandleFunc("/logout", s.handleLogout)

	if mediaDir != "" {
		s.mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.render(w, r, http.StatusOK, "index.html", &templateData{CurrentUser: s.currentUser(r)})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

// authenticated resolves the session cookie to a user and passes the caller
// identity explicitly; anonymous requests are redirected to the login page.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "authorize", "fail")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return domain.User{}, false
	}
	user, ok, err := s.app.UserByToken(r.Context(), c.Value)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("resolve session", "err", err)
		return domain.User{}, false
	}
	return user, ok
}

// currentUser is the optional variant for pages open to anonymous visitors.
func (s *Server) currentUser(r *http.Request) *domain.User {
	if user, ok := s.authorize(r); ok {
		return &user
	}
	return nil
}

// tweet handlers

func (s *Server) handleTweetList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	tweets, err := s.app.ListTweets(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	current := s.currentUser(r)
	s.render(w, r, http.StatusOK, "tweet_list.html", &templateData{
		CurrentUser: current,
		Tweets:      s.tweetViews(r, tweets, current),
	})
}

func (s *Server) handleTweetCreate(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "tweet_form.html", &templateData{CurrentUser: &user})
	case http.MethodPost:
		form, upload, errs, err := s.parseTweetForm(w, r)
		if err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}
		if len(errs) > 0 {
			s.render(w, r, http.StatusUnprocessableEntity, "tweet_form.html", &templateData{
				CurrentUser: &user,
				Form:        map[string]string{"text": form.Text},
				Errors:      errs,
			})
			return
		}
		if _, err := s.app.CreateTweet(r.Context(), user, form.Text, upload); err != nil {
			s.serverError(w, r, err)
			return
		}
		http.Redirect(w, r, "/tweets", http.StatusSeeOther)
	default:
		methodNotAllowed(w)
	}
}

// /tweets/{id}/edit and /tweets/{id}/delete
func (s *Server) handleTweetByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/tweets/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	switch parts[1] {
	case "edit":
		s.handleTweetEdit(w, r, user, id)
	case "delete":
		s.handleTweetDelete(w, r, user, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTweetEdit(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	tweet, err := s.app.GetOwnTweet(r.Context(), user, id)
	if err != nil {
		s.tweetError(w, r, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		view := s.tweetViews(r, []domain.Tweet{tweet}, &user)[0]
		s.render(w, r, http.StatusOK, "tweet_form.html", &templateData{
			CurrentUser: &user,
			Tweet:       &view,
			Form:        map[string]string{"text": tweet.Text},
		})
	case http.MethodPost:
		form, upload, errs, err := s.parseTweetForm(w, r)
		if err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}
		if len(errs) > 0 {
			view := s.tweetViews(r, []domain.Tweet{tweet}, &user)[0]
			s.render(w, r, http.StatusUnprocessableEntity, "tweet_form.html", &templateData{
				CurrentUser: &user,
				Tweet:       &view,
				Form:        map[string]string{"text": form.Text},
				Errors:      errs,
			})
			return
		}
		if _, err := s.app.EditTweet(r.Context(), user, id, form.Text, upload); err != nil {
			s.tweetError(w, r, err)
			return
		}
		http.Redirect(w, r, "/tweets", http.StatusSeeOther)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleTweetDelete(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	tweet, err := s.app.GetOwnTweet(r.Context(), user, id)
	if err != nil {
		s.tweetError(w, r, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		view := s.tweetViews(r, []domain.Tweet{tweet}, &user)[0]
		s.render(w, r, http.StatusOK, "tweet_confirm_delete.html", &templateData{
			CurrentUser: &user,
			Tweet:       &view,
		})
	case http.MethodPost:
		if err := s.app.DeleteTweet(r.Context(), user, id); err != nil {
			s.tweetError(w, r, err)
			return
		}
		// Success message deliberately kept at error level; see DESIGN.md.
		s.addFlash(w, r, domain.FlashError, "Tweet deleted successfully")
		http.Redirect(w, r, "/tweets", http.StatusSeeOther)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	// The query parameter is required; there is no default.
	if !r.URL.Query().Has("query") {
		http.Error(w, "query parameter is required", http.StatusBadRequest)
		return
	}
	query := r.URL.Query().Get("query")
	tweets, err := s.app.SearchTweets(r.Context(), query)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	current := s.currentUser(r)
	data := &templateData{
		CurrentUser: current,
		Tweets:      s.tweetViews(r, tweets, current),
		Query:       query,
	}
	if len(tweets) == 0 {
		// Rendered on this very page, so it bypasses the flash store.
		data.Flashes = []domain.FlashMessage{{
			Level:   domain.FlashWarning,
			Message: "No search result found. Please refine your query.",
		}}
	}
	s.render(w, r, http.StatusOK, "search.html", data)
}

// account handlers

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "register.html", &templateData{CurrentUser: s.currentUser(r)})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}
		form := forms.RegisterForm{
			Username:  strings.TrimSpace(r.PostFormValue("username")),
			Email:     strings.TrimSpace(r.PostFormValue("email")),
			Password1: r.PostFormValue("password1"),
			Password2: r.PostFormValue("password2"),
		}
		errs := forms.Validate(form)
		if errs == nil {
			user, token, err := s.app.Register(r.Context(), form.Username, form.Email, form.Password1)
			switch {
			case errors.Is(err, app.ErrUsernameTaken):
				errs = forms.Errors{"username": "This username is already taken."}
			case err != nil:
				s.serverError(w, r, err)
				return
			default:
				s.audit(r, "register", "success", "user_id", user.ID)
				s.setSessionCookie(w, token)
				s.pushFlash(r, token, domain.FlashSuccess, "You are registered successfully")
				http.Redirect(w, r, "/tweets", http.StatusSeeOther)
				return
			}
		}
		s.audit(r, "register", "fail")
		s.render(w, r, http.StatusUnprocessableEntity, "register.html", &templateData{
			Form:   map[string]string{"username": form.Username, "email": form.Email},
			Errors: errs,
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, http.StatusOK, "login.html", &templateData{CurrentUser: s.currentUser(r)})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}
		form := forms.LoginForm{
			Username: strings.TrimSpace(r.PostFormValue("username")),
			Password: r.PostFormValue("password"),
		}
		errs := forms.Validate(form)
		if errs == nil {
			user, token, err := s.app.Login(r.Context(), form.Username, form.Password)
			switch {
			case errors.Is(err, app.ErrInvalidCredentials):
				errs = forms.Errors{"form": "Invalid username or password."}
			case err != nil:
				s.serverError(w, r, err)
				return
			default:
				s.audit(r, "login", "success", "user_id", user.ID)
				s.setSessionCookie(w, token)
				http.Redirect(w, r, "/tweets", http.StatusSeeOther)
				return
			}
		}
		s.audit(r, "login", "fail")
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", &templateData{
			Form:   map[string]string{"username": form.Username},
			Errors: errs,
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if err := s.app.Logout(r.Context(), c.Value); err != nil {
			util.LoggerFromContext(r.Context()).Warn("logout", "err", err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/tweets", http.StatusSeeOther)
}

// helpers

// parseTweetForm reads the multipart tweet form. The returned upload is nil
// when no file was attached; field errors cover both text and media.
func (s *Server) parseTweetForm(w http.ResponseWriter, r *http.Request) (forms.TweetForm, *app.MediaUpload, forms.Errors, error) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return forms.TweetForm{}, nil, nil, err
	}
	form := forms.TweetForm{Text: strings.TrimSpace(r.PostFormValue("text"))}
	errs := forms.Validate(form)

	var upload *app.MediaUpload
	file, header, err := r.FormFile("media")
	switch err {
	case nil:
		if !s.isExtensionAllowed(header.Filename) {
			if errs == nil {
				errs = forms.Errors{}
			}
			errs["media"] = "Unsupported file type."
			file.Close()
			break
		}
		upload = &app.MediaUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			SizeBytes:   header.Size,
			Reader:      file,
		}
	case http.ErrMissingFile:
		// media is optional
	default:
		return forms.TweetForm{}, nil, nil, err
	}
	return form, upload, errs, nil
}

// tweetError maps the uniform not-found outcome; anything else is a 500.
func (s *Server) tweetError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, app.ErrTweetNotFound) {
		http.NotFound(w, r)
		return
	}
	s.serverError(w, r, err)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessionTTL.Seconds()),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// pushFlash queues a message under an explicit scope, used right after a new
// session token was issued so the flash survives the redirect.
func (s *Server) pushFlash(r *http.Request, scope string, level domain.FlashLevel, message string) {
	if err := s.flashes.Push(scope, domain.FlashMessage{Level: level, Message: message}); err != nil {
		util.LoggerFromContext(r.Context()).Warn("push flash", "err", err)
	}
}

func (s *Server) isExtensionAllowed(filename string) bool {
	if len(s.allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := s.allowedExtensions[ext]
	return ok
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 10 * 1024 * 1024
	}
	return value
}

func normalizeExtensions(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
	}
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}
