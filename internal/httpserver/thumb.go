package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/png"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"lanshare/internal/logging"
)

const (
	thumbMaxSide = 512
	// thumbMaxPixels bounds what the decoder may allocate. The header is
	// checked before any pixel data is read.
	thumbMaxPixels = 40_000_000
)

var errImageTooLarge = errors.New("image too large to preview")

// handleThumb renders an image file as a bounded JPEG for the preview modal.
// Previews are generated per request.
func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("file")
	if raw == "" || !isImageName(raw) {
		http.NotFound(w, r)
		return
	}
	abs, ok := s.resolveFile(w, raw)
	if !ok {
		return
	}
	st, err := os.Stat(abs)
	if err != nil || !st.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	b, err := makeThumb(abs, thumbMaxSide)
	if err != nil {
		logging.Debug("thumbnail failed", zap.String("file", abs), zap.Error(err))
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(b)
}

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}

func makeThumb(absPath string, max int) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, os.ErrInvalid
	}
	if int64(cfg.Width)*int64(cfg.Height) > thumbMaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", errImageTooLarge, cfg.Width, cfg.Height)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, os.ErrInvalid
	}

	nw, nh := scaleToFit(w, h, max)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// scaleToFit shrinks w x h so the longer side is at most max, keeping the
// aspect ratio. Images that already fit are left alone.
func scaleToFit(w, h, max int) (int, int) {
	if max <= 0 {
		max = thumbMaxSide
	}
	nw, nh := w, h
	if w >= h && w > max {
		nw = max
		nh = int(float64(h) * (float64(max) / float64(w)))
	} else if h > w && h > max {
		nh = max
		nw = int(float64(w) * (float64(max) / float64(h)))
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
