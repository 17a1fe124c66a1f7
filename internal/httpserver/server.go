package httpserver

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"lanshare/internal/config"
	"lanshare/internal/fileops"
	"lanshare/internal/fsutil"
	"lanshare/internal/hashing"
	"lanshare/internal/listing"
	"lanshare/internal/logging"
	"lanshare/internal/metrics"
	"lanshare/internal/portkill"
)

type Options struct {
	Config config.Config
	// PublicURL is the LAN address shown on the page and encoded by /qr.png.
	PublicURL string
	// Terminate runs in its own goroutine after POST /kill has been answered.
	// Nil sends SIGTERM to the current process.
	Terminate func()
}

type Server struct {
	cfg       config.Config
	paths     *fsutil.Resolver
	lister    listing.Lister
	tmpl      *template.Template
	assets    fs.FS
	pid       int
	hostname  string
	publicURL string
	terminate func()
}

func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	paths, err := fsutil.NewResolver(cfg.Root, cfg.Confine)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(paths.Root())
	if err != nil {
		return nil, fmt.Errorf("share root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("share root %s is not a directory", paths.Root())
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	assets, err := fs.Sub(embeddedWeb, "web/assets")
	if err != nil {
		return nil, err
	}
	hostname, _ := os.Hostname()

	s := &Server{
		cfg:       cfg,
		paths:     paths,
		lister:    listing.Lister{ParentOf: paths.Parent},
		tmpl:      tmpl,
		assets:    assets,
		pid:       os.Getpid(),
		hostname:  hostname,
		publicURL: opts.PublicURL,
		terminate: opts.Terminate,
	}
	if s.terminate == nil {
		s.terminate = func() {
			if err := portkill.Terminate(os.Getpid()); err != nil {
				logging.Error("self terminate failed", zap.Error(err))
			}
		}
	}
	return s, nil
}

// Root is the absolute share root.
func (s *Server) Root() string { return s.paths.Root() }

type route struct {
	method  string
	pattern string
	handler http.Handler
}

// routes is the dispatch table, in registration order. Patterns use
// http.ServeMux syntax; "GET /" and "POST /" are the fallbacks.
func (s *Server) routes() []route {
	rt := []route{
		{http.MethodGet, "/healthz", http.HandlerFunc(s.handleHealth)},
		{http.MethodGet, "/{$}", http.HandlerFunc(s.handleIndex)},
		{http.MethodGet, "/index.html", http.HandlerFunc(s.handleIndex)},
		{http.MethodGet, "/list", http.HandlerFunc(s.handleList)},
		{http.MethodGet, "/viewfile", http.HandlerFunc(s.handleView)},
		{http.MethodGet, "/download", http.HandlerFunc(s.handleDownload)},
		{http.MethodGet, "/thumb", http.HandlerFunc(s.handleThumb)},
		{http.MethodGet, "/qr.png", http.HandlerFunc(s.handleQR)},
		{http.MethodGet, "/_assets/", http.StripPrefix("/_assets/", http.FileServer(http.FS(s.assets)))},
		{http.MethodGet, "/favicon.ico", http.HandlerFunc(s.handleNoFavicon)},
		{http.MethodGet, "/", s.staticHandler()},
		{http.MethodPost, "/upload", http.HandlerFunc(s.handleUpload)},
	}
	if s.cfg.AllowKill {
		rt = append(rt, route{http.MethodPost, "/kill", http.HandlerFunc(s.handleKill)})
	}
	if s.cfg.WebDAV {
		dav := s.davHandler()
		for _, m := range davMethods {
			rt = append(rt, route{m, "/dav/", dav})
		}
	}
	return append(rt, route{http.MethodPost, "/", http.HandlerFunc(s.handleUnsupportedPost)})
}

// Handler returns the full handler chain: hardening headers, request log,
// metrics and the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, rt := range s.routes() {
		mux.Handle(rt.method+" "+rt.pattern, rt.handler)
	}
	label := func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			return "unmatched"
		}
		return pattern
	}
	return withHeaders(withRequestLog(metrics.Middleware(label, mux)))
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok\n")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	hash, _ := hashing.Parse(s.cfg.Hash)
	page := pageView{
		PID:        s.pid,
		Hostname:   s.hostname,
		PublicURL:  s.publicURL,
		Hash:       hash,
		Algorithms: hashing.Algorithms(),
		AllowKill:  s.cfg.AllowKill,
		WebDAV:     s.cfg.WebDAV,
		ShowHidden: s.cfg.ShowHidden,
		Table:      s.buildTable(r, s.paths.Root(), hash, s.cfg.ShowHidden),
	}
	s.render(w, "index.html", page)
}

// handleList never fails the request; problems are rendered into the
// fragment.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	showHidden := s.cfg.ShowHidden || strings.EqualFold(q.Get("showHidden"), "true")

	hashSel := q.Get("hash")
	if hashSel == "" {
		hashSel = s.cfg.Hash
	}
	alg, err := hashing.Parse(hashSel)
	if err != nil {
		s.render(w, "table", tableView{Folder: q.Get("folder"), Err: err.Error()})
		return
	}
	folder, err := s.paths.Resolve(q.Get("folder"))
	if err != nil {
		s.render(w, "table", tableView{Folder: q.Get("folder"), Hash: alg, Err: err.Error()})
		return
	}
	s.render(w, "table", s.buildTable(r, folder, alg, showHidden))
}

func (s *Server) buildTable(r *http.Request, folder string, alg hashing.Algorithm, showHidden bool) tableView {
	tv := tableView{Folder: folder, Display: s.paths.Display(folder), Hash: alg}
	rows, err := s.lister.List(r.Context(), folder, alg, showHidden)
	if err != nil {
		logging.Warn("listing failed", zap.String("folder", folder), zap.Error(err))
		metrics.RecordListing(0, alg.String(), 0, false)
		tv.Err = err.Error()
		return tv
	}
	var hashed int64
	for _, e := range rows {
		if e.HasSize && e.Hash != listing.NoHash {
			hashed += e.Size
		}
	}
	metrics.RecordListing(len(rows), alg.String(), hashed, true)
	logging.Debug("listed folder",
		zap.String("folder", folder),
		zap.Int("entries", len(rows)-1),
		zap.String("hash", alg.String()))
	tv.Rows = rows
	return tv
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("file")
	if raw == "" {
		writeText(w, http.StatusBadRequest, "File parameter missing")
		return
	}
	abs, ok := s.resolveFile(w, raw)
	if !ok {
		return
	}
	text, err := fileops.ReadText(abs)
	if err != nil {
		writeText(w, http.StatusNotFound, "File not found or error: "+err.Error())
		return
	}
	writeText(w, http.StatusOK, text)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("file")
	if raw == "" {
		writeText(w, http.StatusNotFound, "File not found")
		return
	}
	abs, ok := s.resolveFile(w, raw)
	if !ok {
		return
	}
	f, st, err := fileops.Open(abs)
	if err != nil {
		if errors.Is(err, fileops.ErrNotFound) {
			writeText(w, http.StatusNotFound, "File not found")
			return
		}
		logging.Error("download open failed", zap.String("file", abs), zap.Error(err))
		writeText(w, http.StatusInternalServerError, "Error reading file: "+err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": st.Name()}))
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
	metrics.RecordDownload(st.Size())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/form-data" {
		writeText(w, http.StatusBadRequest, "Invalid upload request.")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeText(w, http.StatusInternalServerError, "Error parsing form data: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	folderRaw := r.FormValue("folder")
	if folderRaw == "" {
		folderRaw = "."
	}
	folder, err := s.paths.Resolve(folderRaw)
	if err != nil {
		writeText(w, statusForPathErr(err), "Upload failed: "+err.Error())
		return
	}

	var saved []string
	for _, fh := range r.MultipartForm.File["file"] {
		if fh.Filename == "" {
			continue
		}
		name, n, err := saveUpload(folder, fh)
		if err != nil {
			metrics.RecordUpload(n, false)
			logging.Error("upload failed",
				zap.String("folder", folder),
				zap.String("file", fh.Filename),
				zap.Strings("saved", saved),
				zap.Error(err))
			// Reported in the body; only form parsing answers 500.
			msg := "Upload failed: " + err.Error()
			if len(saved) > 0 {
				msg += " (uploaded: " + strings.Join(saved, ", ") + ")"
			}
			writeText(w, http.StatusOK, msg)
			return
		}
		metrics.RecordUpload(n, true)
		logging.Info("uploaded", zap.String("folder", folder), zap.String("file", name), zap.Int64("bytes", n))
		saved = append(saved, name)
	}
	if len(saved) == 0 {
		writeText(w, http.StatusOK, "No files uploaded.")
		return
	}
	writeText(w, http.StatusOK, "Uploaded: "+strings.Join(saved, ", "))
}

func saveUpload(folder string, fh *multipart.FileHeader) (string, int64, error) {
	src, err := fh.Open()
	if err != nil {
		return "", 0, err
	}
	defer src.Close()
	return fileops.WriteUpload(folder, fh.Filename, src)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	logging.Warn("shutdown requested", zap.String("remote", r.RemoteAddr), zap.Int("pid", s.pid))
	writeText(w, http.StatusOK, "Server is shutting down...")
	go s.terminate()
}

// staticHandler serves the share root by URL path. Paths go through the same
// resolver as file= parameters so symlinks cannot lead out of a confined root.
func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.paths.Root()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if _, err := s.paths.Resolve(rel); err != nil {
			writeText(w, statusForPathErr(err), err.Error())
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) handleNoFavicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

func (s *Server) handleUnsupportedPost(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, "Unsupported POST path.")
}

// --- webdav ---

var davMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut,
	http.MethodDelete, http.MethodPost,
	"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK",
}

func (s *Server) davHandler() http.Handler {
	return &webdav.Handler{
		Prefix:     "/dav",
		FileSystem: webdav.Dir(s.paths.Root()),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logging.Warn("webdav", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
			}
		},
	}
}

// --- helpers ---

// resolveFile maps a file= parameter to a host path, writing the error
// response itself when it cannot.
func (s *Server) resolveFile(w http.ResponseWriter, raw string) (string, bool) {
	abs, err := s.paths.Resolve(raw)
	if err != nil {
		writeText(w, statusForPathErr(err), err.Error())
		return "", false
	}
	return abs, true
}

func statusForPathErr(err error) int {
	if errors.Is(err, fsutil.ErrOutsideRoot) {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, msg)
}
