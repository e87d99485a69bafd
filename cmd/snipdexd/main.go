// Command snipdexd runs one federated search node: it loads
// configuration, opens the local cache, registers with its mother
// peer, and serves the peer protocol and web UI over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/snipdex-net/snipdex/cache"
	"github.com/snipdex-net/snipdex/config"
	"github.com/snipdex-net/snipdex/fanout"
	"github.com/snipdex-net/snipdex/peer"
	"github.com/snipdex-net/snipdex/query"
	"github.com/snipdex-net/snipdex/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "snipdexd",
		Short:        "snipdexd runs a federated search node",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to snipdex.yaml (defaults to the first file found on the standard search path)")

	loadConfig := func() (*config.Config, error) {
		path := cfgPath
		if path == "" {
			path = config.FindConfig()
		}
		if path == "" {
			return config.LoadFromEnv()
		}
		return config.Load(path)
	}

	flagOverrides := &config.Config{}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "start the node's HTTP receiver and register with its mother",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, cfg, flagOverrides)
			return runServe(cmd.Context(), cfg)
		},
	}
	config.BindFlags(serveCmd, flagOverrides)

	peersCmd := &cobra.Command{
		Use:   "peers",
		Short: "list the peers known to the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runPeers(cfg)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the protocol version this build speaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), peer.ResponseVersion)
			return nil
		},
	}

	root.AddCommand(serveCmd, peersCmd, versionCmd)
	return root
}

// applyFlagOverrides copies only the CLI flags the user actually set on
// cmd from overrides onto cfg, so that flags win over the file/env
// layers without clobbering unset fields with overrides' zero values.
func applyFlagOverrides(cmd *cobra.Command, cfg, overrides *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Node.Port = overrides.Node.Port
	}
	if flags.Changed("debug") {
		cfg.Node.Debug = overrides.Node.Debug
	}
	if flags.Changed("mother-host") {
		cfg.Mother.Host = overrides.Mother.Host
	}
	if flags.Changed("mother-port") {
		cfg.Mother.Port = overrides.Mother.Port
	}
	if flags.Changed("cache-file") {
		cfg.Cache.File = overrides.Cache.File
	}
	if flags.Changed("web-root") {
		cfg.Web.Root = overrides.Web.Root
	}
	if flags.Changed("exposure") {
		cfg.Web.Exposure = overrides.Web.Exposure
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Node.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	c, err := cache.OpenOrCreate(cfg.Cache.File, logger)
	if err != nil {
		return fmt.Errorf("snipdexd: open cache: %w", err)
	}
	defer c.Close()

	self := &peer.Peer{PID: c.SelfPID()}
	self.SetUpdatedNow()

	// Seed both addresses from the kernel-assigned outbound route; the
	// mother's registration reply overrides them when reachable.
	if localHost, err := fanout.DiscoverLocalAddress("8.8.8.8:80"); err == nil {
		addr := fmt.Sprintf("%s:%d", localHost, cfg.Node.Port)
		self.LocalAddress = addr
		self.PublicAddress = addr
	} else {
		logger.Warn("snipdexd: local address discovery failed", "error", err)
	}

	engine := fanout.New(c, logger)
	state := fanout.NewState(self)

	motherHost := cfg.Mother.Host
	if motherHost == "localhost" {
		motherHost = "127.0.0.1"
	}
	if motherHost == "127.0.0.1" && cfg.Mother.Port == cfg.Node.Port {
		// This node is its own mother; nothing to register with.
		logger.Info("snipdexd: running as mother node", "addr", cfg.Mother.Addr())
	} else {
		motherTmpl := &peer.Template{
			URL:  fmt.Sprintf("http://%s:%d/snipdex/?q={q}&h={h?}&p={p?}&l={l?}&f=xml&v=%s", motherHost, cfg.Mother.Port, peer.ResponseVersion),
			Type: "application/snipdex+xml",
		}
		reg, err := engine.Register(ctx, motherTmpl, self)
		if err != nil {
			return fmt.Errorf("snipdexd: %w", err)
		}
		motherPublic := reg.Query[query.KeyPeerIP]
		if motherPublic == "" && reg.Mother != nil {
			motherPublic = hostOnly(reg.Mother.PublicAddress)
		}
		state.SetMotherPublicHost(motherPublic)
		state.SetFallback(reg.FallbackPeers)
		state.SetBranding(reg.Branding)

		var publicAddr, localAddr string
		if pub := reg.Query[query.KeyPublicIP]; pub != "" {
			publicAddr = pub + ":" + reg.Query[query.KeyPublicPort]
		}
		if local := reg.Query[query.KeyLocalIP]; local != "" {
			localAddr = local + ":" + reg.Query[query.KeyLocalPort]
		}
		state.SetSelfAddress(publicAddr, localAddr)
		logger.Info("snipdexd: registered with mother", "mother", cfg.Mother.Addr())
	}

	srv := server.New(cfg, c, engine, state, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("snipdexd: listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("snipdexd: serve: %w", err)
		}
		return nil
	case <-stop:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runPeers(cfg *config.Config) error {
	logger := newLogger(cfg)
	c, err := cache.OpenOrCreate(cfg.Cache.File, logger)
	if err != nil {
		return fmt.Errorf("snipdexd: open cache: %w", err)
	}
	defer c.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tLANGUAGE\tUPDATED")
	for page := 1; ; page++ {
		peers, err := c.AllPeersByPage(page)
		if err != nil {
			return fmt.Errorf("snipdexd: list peers: %w", err)
		}
		if peers.Len() == 0 {
			break
		}
		for _, e := range peers.Entries() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Peer.PID, e.Peer.Name, e.Peer.Language, e.Peer.Updated)
		}
	}
	return w.Flush()
}

func hostOnly(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
