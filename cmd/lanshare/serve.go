package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"lanshare/internal/config"
	"lanshare/internal/httpserver"
	"lanshare/internal/logging"
	"lanshare/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// serve listens on cfg.Addr() and runs until SIGINT or SIGTERM. POST /kill
// ends up here too: the handler signals its own process.
func serve(ctx context.Context, cfg config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, cfg, ln, out, nil)
}

// run serves on ln until ctx is done. terminate is handed to the server as
// the /kill action; nil keeps the self-signal default.
func run(ctx context.Context, cfg config.Config, ln net.Listener, out io.Writer, terminate func()) error {
	port := ln.Addr().(*net.TCPAddr).Port
	links, public := shareLinks(cfg.Bind, port)

	srv, err := httpserver.New(httpserver.Options{
		Config:    cfg,
		PublicURL: public,
		Terminate: terminate,
	})
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("server init: %w", err)
	}

	printBanner(out, os.Getpid(), port, links)
	if cfg.QR && public != "" {
		printQR(out, public)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info("lanshare listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("root", srv.Root()),
			zap.Bool("confine", cfg.Confine),
			zap.Bool("webdav", cfg.WebDAV))
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if metricsServer != nil {
			_ = metricsServer.Close()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	fmt.Fprintln(out, "\nShutting down...")
	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("graceful shutdown incomplete", zap.Error(err))
		_ = httpServer.Close()
	}
	return nil
}

// shareLinks returns the URLs to print and the one to advertise by QR code.
// A wildcard bind lists loopback, every LAN address and localhost.
func shareLinks(bind string, port int) ([]string, string) {
	p := strconv.Itoa(port)
	link := func(host string) string { return "http://" + net.JoinHostPort(host, p) + "/" }

	ip := net.ParseIP(bind)
	if ip != nil && !ip.IsUnspecified() {
		u := link(bind)
		if ip.IsLoopback() {
			return []string{u}, ""
		}
		return []string{u}, u
	}
	if bind == "localhost" {
		return []string{link("localhost")}, ""
	}
	if ip == nil {
		u := link(bind)
		return []string{u}, u
	}

	links := []string{link("127.0.0.1")}
	public := ""
	for _, lan := range lanIPs() {
		u := link(lan)
		links = append(links, u)
		if public == "" {
			public = u
		}
	}
	links = append(links, link("localhost"))
	return links, public
}

// lanIPs lists the IPv4 addresses of interfaces that are up and not loopback.
func lanIPs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP.String())
			}
		}
	}
	return ips
}

func printBanner(out io.Writer, pid, port int, links []string) {
	fmt.Fprintln(out, "[lanshare]")
	fmt.Fprintf(out, "PID: %d\n", pid)
	fmt.Fprintf(out, "Port: %d\n", port)
	fmt.Fprintln(out, "\nLinks:")
	for _, l := range links {
		fmt.Fprintf(out, "  %s\n", l)
	}
	fmt.Fprintf(out, "\n(Press Ctrl+C to quit or use 'kill %d')\n", pid)
}

func printQR(out io.Writer, url string) {
	q, err := qrcode.New(url, qrcode.Low)
	if err != nil {
		logging.Warn("qr code", zap.Error(err))
		return
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, q.ToSmallString(false))
}
