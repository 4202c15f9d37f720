package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/peerdoc-labs/peerdoc/internal/admin"
	"github.com/peerdoc-labs/peerdoc/internal/auth"
	"github.com/peerdoc-labs/peerdoc/internal/config"
	"github.com/peerdoc-labs/peerdoc/internal/docsync"
	"github.com/peerdoc-labs/peerdoc/internal/peerconn"
	"github.com/peerdoc-labs/peerdoc/internal/registry"
	"github.com/peerdoc-labs/peerdoc/internal/storage"
	"github.com/peerdoc-labs/peerdoc/internal/transport"
	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

const (
	handshakeTimeout = 30 * time.Second
	tokenTTL         = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Error loading configuration: %v", err)
	}
	log.Printf("INFO: Configuration loaded successfully from %s", *configPath)

	localID := wire.PeerID(cfg.RepoID)
	if localID == "" {
		localID = wire.PeerID(uuid.NewString())
		log.Printf("INFO: No repoId configured, generated %s", localID)
	}
	log.Printf("INFO: This node is repo %s", localID)

	store, cleanup, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("FATAL: Opening storage failed: %v", err)
	}
	defer cleanup()

	handler := docsync.New(localID, store)
	reg := registry.New(localID, handler, registry.Options{Strict: cfg.StrictProtocol})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := peerconn.Options{MaxFrameBytes: cfg.MaxFrameBytes}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.PeerListenAddress != "" {
		server := transport.NewTCPServer(cfg.PeerListenAddress, func(conn net.Conn) {
			acceptPeer(reg, conn, localID, opts)
		})
		if err := server.Listen(); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		group.Go(func() error { return server.Serve(groupCtx) })
	}

	if cfg.WebsocketListenAddress != "" {
		var validator auth.Validator
		if cfg.PeerJWTSecret != "" {
			validator, err = auth.NewValidator(cfg.PeerJWTSecret)
			if err != nil {
				log.Fatalf("FATAL: %v", err)
			}
		} else {
			log.Println("WARN: Websocket listener running without peer admission checks.")
		}

		wsServer := transport.NewWSServer(validator, func(stream io.ReadWriteCloser) {
			acceptStream(reg, stream, localID, opts)
		})
		httpServer := &http.Server{Addr: cfg.WebsocketListenAddress, Handler: wsServer}

		group.Go(func() error {
			log.Printf("INFO: [WS] Listening for peers on %s", cfg.WebsocketListenAddress)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.AdminListenAddress != "" {
		adminServer := admin.New(cfg.AdminListenAddress, localID, reg, store)
		group.Go(func() error { return adminServer.Run(groupCtx) })
	}

	for _, peerURL := range cfg.Peers {
		group.Go(func() error {
			if err := dialPeer(groupCtx, reg, cfg, peerURL, localID, opts); err != nil {
				// One unreachable peer must not take the node down;
				// reconnect policy belongs to the operator.
				log.Printf("WARN: [PEER] Connecting to %s failed: %v", peerURL, err)
			}
			return nil
		})
	}

	log.Println("INFO: peerdocd is running. Press CTRL+C to exit.")

	<-ctx.Done()
	log.Println("INFO: Shutdown signal received.")

	reg.Stop()
	if err := group.Wait(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	log.Println("INFO: Shutdown complete. Goodbye.")
}

// openStorage selects the configured document store. The returned cleanup
// releases backend resources.
func openStorage(cfg *config.Config) (storage.Storage, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Storage.Backend {
	case "", config.BackendMemory:
		log.Println("INFO: Using in-memory document storage.")
		return storage.NewMemory(), func() {}, nil

	case config.BackendBolt:
		store, err := storage.NewBolt(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("INFO: Using bolt document storage at %s", cfg.Storage.Path)
		return store, func() { store.Close() }, nil

	case config.BackendPostgres:
		store, err := storage.NewPostgres(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		log.Println("INFO: Using postgres document storage.")
		return store, func() { store.Close() }, nil

	case config.BackendRedis:
		store, err := storage.NewRedis(ctx, cfg.Storage.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("INFO: Using redis document storage at %s", cfg.Storage.RedisAddr)
		return store, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// acceptPeer runs the incoming handshake on a raw TCP connection under a
// deadline, then hands the established connection to the registry.
func acceptPeer(reg *registry.Registry, conn net.Conn, localID wire.PeerID, opts peerconn.Options) {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))

	pc, err := peerconn.Connect(conn, localID, peerconn.Incoming, opts)
	if err != nil {
		log.Printf("WARN: [PEER] Handshake with %s failed: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})

	log.Printf("INFO: [PEER] Established incoming connection from repo %s (%s)", pc.RemoteID(), conn.RemoteAddr())
	reg.Register(pc)
}

// acceptStream is acceptPeer for transports without deadline support.
func acceptStream(reg *registry.Registry, stream io.ReadWriteCloser, localID wire.PeerID, opts peerconn.Options) {
	pc, err := peerconn.Connect(stream, localID, peerconn.Incoming, opts)
	if err != nil {
		log.Printf("WARN: [PEER] Websocket handshake failed: %v", err)
		stream.Close()
		return
	}

	log.Printf("INFO: [PEER] Established incoming websocket connection from repo %s", pc.RemoteID())
	reg.Register(pc)
}

// dialPeer opens one outgoing connection and registers it.
func dialPeer(ctx context.Context, reg *registry.Registry, cfg *config.Config, peerURL string, localID wire.PeerID, opts peerconn.Options) error {
	stream, err := openStream(ctx, cfg, peerURL, localID)
	if err != nil {
		return err
	}

	pc, err := peerconn.Connect(stream, localID, peerconn.Outgoing, opts)
	if err != nil {
		stream.Close()
		return err
	}

	log.Printf("INFO: [PEER] Established outgoing connection to repo %s (%s)", pc.RemoteID(), peerURL)
	reg.Register(pc)
	return nil
}

func openStream(ctx context.Context, cfg *config.Config, peerURL string, localID wire.PeerID) (io.ReadWriteCloser, error) {
	u, err := url.Parse(peerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid peer URL %q: %w", peerURL, err)
	}

	if u.Scheme == "tcp" {
		return transport.DialTCP(ctx, u.Host)
	}

	// ws:// or wss://, validated at config load.
	var token string
	if cfg.PeerJWTSecret != "" {
		token, err = auth.MintToken(cfg.PeerJWTSecret, string(localID), tokenTTL)
		if err != nil {
			return nil, err
		}
	}
	return transport.DialWS(ctx, peerURL, token)
}
