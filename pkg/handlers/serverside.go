package handlers

import (
	"bytes"
	"context"
	"crypto/sha1"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/spencer-p/tidelink/pkg/data"
	"github.com/spencer-p/tidelink/pkg/logger"
	"github.com/spencer-p/tidelink/pkg/metrics"
	"github.com/spencer-p/tidelink/pkg/page"
	"github.com/spencer-p/tidelink/pkg/timetricks"
)

const (
	sessionName       = "tidelink"
	sessionLastViewed = "last-viewed"
	visitorID         = "visitorid"
	// See https://developer.chrome.com/blog/cookie-max-age-expires.
	defaultMaxAge = 60 * 60 * 24 * 400 // 400 days in seconds.

	// stayParam shows the page even to visitors who chose to be redirected.
	stayParam = "stay"
)

// NewCookieStore keeps sessions in signed and encrypted cookies. An empty
// sessionKey gets a random one, so sessions do not survive a restart.
func NewCookieStore(sessionKey, encryptionKey string, secure bool) *sessions.CookieStore {
	hashKey := []byte(sessionKey)
	if sessionKey == "" {
		hashKey = securecookie.GenerateRandomKey(64)
	}
	var blockKey []byte
	if encryptionKey == "" {
		blockKey = securecookie.GenerateRandomKey(32)
	} else {
		blockKey = pbkdf2.Key([]byte(encryptionKey), []byte(sessionName), 4096, 32, sha1.New)
	}

	store := &sessions.CookieStore{
		Codecs: securecookie.CodecsFromPairs(hashKey, blockKey),
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   defaultMaxAge,
			Secure:   secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
	store.MaxAge(defaultMaxAge)
	return store
}

// makeServerSideIndex serves the redirect page fully rendered on the server.
func (s *server) makeServerSideIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		host := s.hostname(r)

		session, _ := s.sessions.Get(r, sessionName)
		session.Values[sessionLastViewed] = r.URL.RequestURI()
		visitor, lastSeen := s.visitorFromSession(ctx, session)
		if err := session.Save(r, w); err != nil {
			logger.Warn(ctx, "failed to save session", zap.Error(err))
		}

		if visitor != nil && visitor.AutoRedirect && !r.URL.Query().Has(stayParam) {
			metrics.ObserveSiblingRedirect()
			http.Redirect(w, r, s.page.SiblingURL(host), http.StatusFound)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		// Anonymous pages only differ by host.
		if visitor == nil {
			if cached, ok := s.pages.Get(host); ok {
				metrics.ObservePageRender(true)
				w.WriteHeader(http.StatusOK)
				w.Write(cached)
				return
			}
		}

		var buf bytes.Buffer
		err := s.page.Render(&buf, page.Input{
			Host:       host,
			Visitor:    visitor,
			LastSeen:   lastSeen,
			ConfigPath: s.path("config"),
			GoPath:     s.path("go"),
		})
		if err != nil {
			logger.Error(ctx, "failed to render page", zap.String("host", host), zap.Error(err))
			http.Error(w, "failed to render page", http.StatusInternalServerError)
			return
		}
		metrics.ObservePageRender(false)

		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		if visitor == nil {
			s.pages.Set(host, buf.Bytes())
		}
	}
}

// visitorFromSession loads the visitor named by the session and records the
// visit. It also returns when the visitor was previously seen. Lookup
// failures are logged and treated as an anonymous visit.
func (s *server) visitorFromSession(ctx context.Context, session *sessions.Session) (*data.Visitor, string) {
	id, ok := session.Values[visitorID].(uint)
	if !ok {
		return nil, ""
	}

	visitor, err := s.visitors.Find(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			// The store forgot the visitor, e.g. the in-memory store restarted.
			delete(session.Values, visitorID)
		}
		logger.Warn(ctx, "failed to find visitor", zap.Uint("visitor", id), zap.Error(err))
		return nil, ""
	}

	lastSeen := ""
	if !visitor.LastSeen.IsZero() {
		lastSeen = timetricks.LastSeen(visitor.LastSeen)
		logger.Debug(ctx, "visitor returned",
			zap.Uint("visitor", id),
			zap.Duration("since_last_seen", time.Since(visitor.LastSeen)))
	}
	visitor.LastSeen = time.Now()
	visitor.Visits++
	if err := s.visitors.Save(ctx, visitor); err != nil {
		logger.Warn(ctx, "failed to record visit", zap.Uint("visitor", id), zap.Error(err))
	}
	return visitor, lastSeen
}

func (s *server) makeConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session, _ := s.sessions.Get(r, sessionName)

		var visitor data.Visitor
		if id, ok := session.Values[visitorID].(uint); ok {
			// Read-modify-write if the session names a visitor. Otherwise
			// Save assigns a new ID below.
			if found, err := s.visitors.Find(ctx, id); err == nil {
				visitor = *found
			} else {
				logger.Warn(ctx, "failed to find visitor", zap.Uint("visitor", id), zap.Error(err))
			}
		}

		if r.Method == http.MethodGet {
			if err := session.Save(r, w); err != nil {
				logger.Warn(ctx, "failed to save session", zap.Error(err))
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := s.page.RenderConfig(w, page.ConfigInput{
				Host:         s.hostname(r),
				Action:       s.path("config"),
				Name:         visitor.Name,
				AutoRedirect: visitor.AutoRedirect,
			}); err != nil {
				logger.Error(ctx, "failed to render config page", zap.Error(err))
			}
			return
		}
		// The remainder of this function assumes method is POST.
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := r.ParseForm(); err != nil {
			logger.Warn(ctx, "failed to parse form", zap.Error(err))
			http.Error(w, "failed to parse form", http.StatusBadRequest)
			return
		}

		visitor.Name = r.PostForm.Get("name")
		visitor.AutoRedirect = r.PostForm.Get("auto_redirect") == "on"
		visitor.LastSeen = time.Now()
		if err := s.visitors.Save(ctx, &visitor); err != nil {
			logger.Error(ctx, "failed to save preferences", zap.Error(err))
			http.Error(w, "failed to save preferences", http.StatusInternalServerError)
			return
		}
		logger.Info(ctx, "saved preferences",
			zap.Uint("visitor", visitor.ID),
			zap.Bool("auto_redirect", visitor.AutoRedirect))

		session.Values[visitorID] = visitor.ID
		if err := session.Save(r, w); err != nil {
			logger.Warn(ctx, "failed to save session", zap.Error(err))
		}

		// Redirect to whatever they saw last, or the index. The index would
		// bounce a visitor who just enabled auto redirect, so it is asked to
		// stay once.
		redirectTo, ok := session.Values[sessionLastViewed].(string)
		if !ok || redirectTo == "" || redirectTo == s.path("config") {
			redirectTo = s.path("")
		}
		if visitor.AutoRedirect {
			redirectTo = withStay(redirectTo)
		}
		http.Redirect(w, r, redirectTo, http.StatusFound)
	}
}

func withStay(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	q := u.Query()
	q.Set(stayParam, "1")
	u.RawQuery = q.Encode()
	return u.String()
}
