package httpserver

import (
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"lanshare/internal/logging"
)

// handleQR encodes the LAN URL so phones on the same network can open the
// share by scanning the page header.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	if s.publicURL == "" {
		http.NotFound(w, r)
		return
	}
	png, err := qrcode.Encode(s.publicURL, qrcode.Medium, 256)
	if err != nil {
		logging.Error("qr encode failed", zap.String("url", s.publicURL), zap.Error(err))
		http.Error(w, "qr encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
