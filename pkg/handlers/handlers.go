package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/spencer-p/tidelink/pkg/cache"
	"github.com/spencer-p/tidelink/pkg/data"
	"github.com/spencer-p/tidelink/pkg/logger"
	"github.com/spencer-p/tidelink/pkg/metrics"
	"github.com/spencer-p/tidelink/pkg/page"
	"github.com/spencer-p/tidelink/pkg/placeholder"
	"github.com/spencer-p/tidelink/pkg/sibling"
)

const (
	defaultCacheTTL = time.Hour
	koDataEnvKey    = "KO_DATA_PATH"
)

// Options carry what the handlers need from main.
type Options struct {
	// Prefix is the path the router is mounted under.
	Prefix string
	// DataDir holds the static/ directory. Defaults to KO_DATA_PATH or ".".
	DataDir string
	// DefaultHost stands in when a request does not name its host.
	DefaultHost string
	CacheTTL    time.Duration
	// CacheSize bounds each response cache. Defaults to cache.DefaultMaxEntries.
	CacheSize int

	Page     *page.Page
	Sessions sessions.Store
	Visitors data.Store
}

type server struct {
	prefix      string
	dataDir     string
	defaultHost string

	page     *page.Page
	sessions sessions.Store
	visitors data.Store

	// pages holds rendered index pages for anonymous visitors by hostname.
	pages *cache.Timed
	// answers holds sibling API responses by method, URL and hostname.
	answers *cache.Timed
}

func newServer(opts Options) *server {
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = getDataDir()
	}
	size := opts.CacheSize
	if size == 0 {
		size = cache.DefaultMaxEntries
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/"
	}
	return &server{
		prefix:      prefix,
		dataDir:     dataDir,
		defaultHost: opts.DefaultHost,
		page:        opts.Page,
		sessions:    opts.Sessions,
		visitors:    opts.Visitors,
		pages:       cache.NewTimedMax(ttl, size),
		answers:     cache.NewTimedMax(ttl, size),
	}
}

// Register mounts every page of the service on r, which is expected to be
// rooted at opts.Prefix.
func Register(r *mux.Router, opts Options) {
	newServer(opts).register(r)
}

func (s *server) register(r *mux.Router) {
	r.Handle("/", s.makeServerSideIndex())
	r.Handle("/go", s.makeGoHandler())
	r.Handle("/config", s.makeConfigHandler())
	r.Handle("/api/v1/sibling", s.makeServeSibling())
	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "ok")
	}))
	r.PathPrefix("/static/").Handler(s.makeStaticHandler())
}

func getDataDir() string {
	if dir := os.Getenv(koDataEnvKey); dir != "" {
		return dir
	}
	return "."
}

// hostname is the host the viewer's browser sees, or the configured default
// when the request carries none.
func (s *server) hostname(r *http.Request) string {
	if h := sibling.Hostname(r); h != "" {
		return h
	}
	return s.defaultHost
}

func (s *server) path(suffix string) string {
	return pathJoinPreservePrefix(s.prefix, suffix)
}

// makeGoHandler sends the viewer to the sibling service without showing the
// page.
func (s *server) makeGoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.ObserveSiblingRedirect()
		http.Redirect(w, r, s.page.SiblingURL(s.hostname(r)), http.StatusFound)
	})
}

type siblingAnswer struct {
	Host string `json:"host"`
	URL  string `json:"url"`
}

func (s *server) makeServeSibling() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := s.hostname(r)
		asJSON := r.FormValue("o") == "json"
		contentType := "text/plain"
		if asJSON {
			contentType = "application/json"
		}

		// cache based on method, URL and host, which encapsulate the answer
		key := fmt.Sprintf("%s %s %s", r.Method, r.URL, host)
		if cached, ok := s.answers.Get(key); ok {
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}

		answer := siblingAnswer{Host: host, URL: s.page.SiblingURL(host)}
		var buf bytes.Buffer
		if asJSON {
			if err := json.NewEncoder(&buf).Encode(answer); err != nil {
				logger.Error(r.Context(), "failed to encode sibling answer", zap.Error(err))
				http.Error(w, "failed to encode answer", http.StatusInternalServerError)
				return
			}
		} else {
			buf.WriteString(answer.URL)
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		s.answers.Set(key, buf.Bytes())
	})
}

// makeStaticHandler serves the data directory. HTML pages written with
// hostname markers get them filled in for the requesting host.
func (s *server) makeStaticHandler() http.Handler {
	root := http.Dir(s.dataDir)
	files := http.StripPrefix(strings.TrimSuffix(s.prefix, "/"), http.FileServer(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(s.prefix, "/"))
		if strings.HasSuffix(rel, "/") {
			// FileServer would send a directory's index.html untouched.
			if index := path.Join(rel, "index.html"); isFile(root, index) {
				rel = index
			}
		}
		if path.Ext(rel) != ".html" {
			files.ServeHTTP(w, r)
			return
		}

		f, err := root.Open(rel)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		if info, err := f.Stat(); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		var buf bytes.Buffer
		n, err := placeholder.Rewrite(&buf, f, s.hostname(r))
		if err != nil {
			logger.Error(r.Context(), "failed to rewrite static page", zap.String("path", rel), zap.Error(err))
			http.Error(w, "failed to rewrite page", http.StatusInternalServerError)
			return
		}
		metrics.ObserveReplacements(n)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	})
}

func isFile(root http.FileSystem, name string) bool {
	f, err := root.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && !info.IsDir()
}

func pathJoinPreservePrefix(prefix string, suffix string) string {
	trimmedPrefix := path.Join(prefix, "")
	result := path.Join(prefix, suffix)
	if result == trimmedPrefix {
		return prefix
	}
	return result
}
