package httpserver

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"lanshare/internal/hashing"
	"lanshare/internal/listing"
	"lanshare/internal/logging"
)

//go:embed web/*.html web/assets/*
var embeddedWeb embed.FS

type pageView struct {
	PID        int
	Hostname   string
	PublicURL  string
	Hash       hashing.Algorithm
	Algorithms []hashing.Algorithm
	AllowKill  bool
	WebDAV     bool
	ShowHidden bool
	Table      tableView
}

// tableView backs the listing fragment. Err replaces the table when the
// folder could not be listed at all.
type tableView struct {
	Folder  string
	Display string
	Hash    hashing.Algorithm
	Rows    []listing.Entry
	Err     string
}

func parseTemplates() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{"isImage": isImageName}).
		ParseFS(embeddedWeb, "web/*.html")
}

// render buffers the whole template so a failure can still become a 500.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
