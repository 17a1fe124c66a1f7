package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"lanshare/internal/config"
	"lanshare/internal/logging"
	"lanshare/internal/portkill"
)

func main() {
	if err := newRootCmd(viper.New(), os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd binds every config flag into v.
func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	config.SetDefaults(v)

	var cfgFile string
	var killPort int

	cmd := &cobra.Command{
		Use:   "lanshare",
		Short: "Share a directory over the local network",
		Long: `lanshare serves a directory tree over HTTP for quick LAN file exchange.

The page lists folders with owner, size, date and a content hash, previews
text and images, and accepts drag and drop uploads.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if killPort != 0 {
				runKill(cmd.Context(), portkill.Killer{}, killPort, out)
				return nil
			}
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
				return err
			}
			defer logging.Sync()
			logging.Debug("configuration", zap.Any("config", cfg))
			return serve(cmd.Context(), cfg, out)
		},
	}

	d := config.Default()
	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	f.IntVarP(&killPort, "kill", "k", 0, "kill the process using this port and exit")
	f.IntP("port", "p", d.Port, "port to bind")
	f.StringP("bind", "b", d.Bind, "address to bind")
	f.BoolP("show-hidden", "s", d.ShowHidden, "show hidden files in listings")
	f.String("root", d.Root, "directory to share")
	f.Bool("confine", d.Confine, "reject paths outside the share root, including through symlinks")
	f.String("hash", d.Hash, "default hash algorithm")
	f.Bool("allow-kill", d.AllowKill, "expose POST /kill")
	f.Bool("webdav", d.WebDAV, "mount the share root at /dav/")
	f.Bool("qr", d.QR, "print a QR code of the LAN URL at startup")
	f.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address")
	f.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	f.String("log-format", d.LogFormat, "log format (console, json)")

	for _, name := range []string{
		"port", "bind", "show-hidden", "root", "confine", "hash", "allow-kill",
		"webdav", "qr", "metrics-addr", "log-level", "log-format",
	} {
		_ = v.BindPFlag(strings.ReplaceAll(name, "-", "_"), f.Lookup(name))
	}
	v.SetEnvPrefix("LANSHARE")
	v.AutomaticEnv()

	return cmd
}

// loadConfig reads cfgFile when given, then resolves flags, LANSHARE_* env
// vars and defaults in viper's usual order.
func loadConfig(v *viper.Viper, cfgFile string) (config.Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	return config.Load(v)
}

// runKill never fails; outcomes are printed.
func runKill(ctx context.Context, k portkill.Killer, port int, out io.Writer) {
	if ctx == nil {
		ctx = context.Background()
	}
	pids, err := k.Kill(ctx, port)
	switch {
	case errors.Is(err, portkill.ErrUnsupported):
		fmt.Fprintln(out, "Kill by port not implemented for this OS.")
		return
	case err != nil && len(pids) == 0:
		fmt.Fprintf(out, "Failed to kill process on port %d: %v\n", port, err)
		return
	case err != nil:
		fmt.Fprintf(out, "Failed to kill some processes on port %d: %v\n", port, err)
	}
	ids := make([]string, len(pids))
	for i, pid := range pids {
		ids[i] = fmt.Sprint(pid)
	}
	fmt.Fprintf(out, "Killed processes on port %d: %s\n", port, strings.Join(ids, ", "))
}
