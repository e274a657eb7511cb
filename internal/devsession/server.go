package devsession

import (
	"bytes"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// RouterOptions configures the dev HTTP surface.
type RouterOptions struct {
	OutputDir  string
	PublicPath string
	LiveReload bool
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// mountPath turns a public path into a router prefix. Absolute URLs are
// served from the root.
func mountPath(publicPath string) string {
	if !strings.HasPrefix(publicPath, "/") || strings.HasPrefix(publicPath, "//") {
		return "/"
	}
	if !strings.HasSuffix(publicPath, "/") {
		publicPath += "/"
	}
	return publicPath
}

// NewRouter builds the dev session routes.
func NewRouter(opts RouterOptions, hub *LiveReloadHub, status http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(requestLogger(logger))

	if opts.LiveReload && hub != nil {
		r.Get("/livereload", hub.ServeHTTP)
		r.Get("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = w.Write([]byte(LiveReloadScript))
		})
	}
	if status != nil {
		r.Get("/__status", status.ServeHTTP)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	prefix := mountPath(opts.PublicPath)
	static := &staticHandler{dir: opts.OutputDir, liveReload: opts.LiveReload && hub != nil}
	if prefix != "/" {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, prefix, http.StatusFound)
		})
		r.Handle(prefix+"*", http.StripPrefix(strings.TrimSuffix(prefix, "/"), static))
	} else {
		r.Handle("/*", static)
	}
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/livereload" {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				slog.String("method", r.Method),
				logfields.Path(r.URL.Path),
				slog.Int("status", ww.Status()),
				logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
		})
	}
}

// staticHandler serves the promoted output directory. The directory is
// resolved per request, so a promotion swap is picked up immediately.
type staticHandler struct {
	dir        string
	liveReload bool
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.liveReload && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		if file, ok := h.htmlFile(r.URL.Path); ok {
			h.serveInjected(w, r, file)
			return
		}
	}
	http.FileServer(http.Dir(h.dir)).ServeHTTP(w, r)
}

// htmlFile maps a request path to an HTML file on disk, including the
// index.html of a directory.
func (h *staticHandler) htmlFile(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	full := filepath.Join(h.dir, filepath.FromSlash(clean))
	st, err := os.Stat(full)
	if err != nil {
		return "", false
	}
	if st.IsDir() {
		if !strings.HasSuffix(urlPath, "/") {
			return "", false
		}
		full = filepath.Join(full, "index.html")
		if st, err = os.Stat(full); err != nil || st.IsDir() {
			return "", false
		}
	}
	return full, strings.EqualFold(filepath.Ext(full), ".html")
}

func (h *staticHandler) serveInjected(w http.ResponseWriter, r *http.Request, file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	out := InjectScript(data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, filepath.Base(file), time.Time{}, bytes.NewReader(out))
}

var liveReloadTag = []byte(`<script src="/livereload.js"></script>`)

// InjectScript inserts the live-reload client before the last </body>, or
// appends it when the document has none.
func InjectScript(doc []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(doc), []byte("</body>"))
	out := make([]byte, 0, len(doc)+len(liveReloadTag))
	if idx < 0 {
		out = append(out, doc...)
		return append(out, liveReloadTag...)
	}
	out = append(out, doc[:idx]...)
	out = append(out, liveReloadTag...)
	return append(out, doc[idx:]...)
}
