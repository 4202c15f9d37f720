// Package registry owns every established peer connection and routes sync
// messages among them: inbound traffic addressed to the local repo goes to
// the sync handler, traffic addressed to another registered peer is relayed.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/peerdoc-labs/peerdoc/internal/iface"
	"github.com/peerdoc-labs/peerdoc/internal/peerconn"
	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

// ErrUnknownPeer is returned by SendTo when no connection exists for the
// target repo.
var ErrUnknownPeer = errors.New("no connection for peer")

// Options tunes registry behavior.
type Options struct {
	// Strict drops a connection on the first stray handshake message after
	// establishment. The default tolerates and logs them, leaving the
	// close decision to the peer.
	Strict bool
}

// Registry implements iface.Registry. Each registered connection is driven
// by its own read pump goroutine; a slow or failed connection never blocks
// another.
type Registry struct {
	localID wire.PeerID
	handler iface.SyncHandler
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[wire.PeerID]iface.Connection
}

// New creates a registry for the given local identity. Inbound messages
// addressed to localID are handed to handler.
func New(localID wire.PeerID, handler iface.SyncHandler, opts Options) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		localID: localID,
		handler: handler,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[wire.PeerID]iface.Connection),
	}
}

// LocalID returns the identity of the repo this registry serves.
func (r *Registry) LocalID() wire.PeerID { return r.localID }

// Register takes ownership of an established connection and starts its read
// pump. A second connection for the same remote repo replaces the first,
// which is closed. After Stop the connection is closed and discarded, so a
// dial that completes during shutdown cannot leave a pump running.
func (r *Registry) Register(conn iface.Connection) {
	remote := conn.RemoteID()

	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		log.Printf("WARN: [REGISTRY] Rejecting connection from peer %s: registry stopped", remote)
		conn.Close()
		return
	}
	if old, ok := r.conns[remote]; ok {
		log.Printf("WARN: [REGISTRY] Replacing existing connection for peer %s", remote)
		old.Close()
	}
	r.conns[remote] = conn
	r.wg.Add(1)
	r.mu.Unlock()

	log.Printf("INFO: [REGISTRY] Peer %s registered", remote)

	go func() {
		defer r.wg.Done()
		r.readPump(conn)
	}()
}

// Peers returns the ids of all currently connected peers.
func (r *Registry) Peers() []wire.PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]wire.PeerID, 0, len(r.conns))
	for id := range r.conns {
		peers = append(peers, id)
	}
	return peers
}

// SendTo delivers msg to the connection registered for target.
func (r *Registry) SendTo(target wire.PeerID, msg *wire.SyncMessage) error {
	r.mu.Lock()
	conn, ok := r.conns[target]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, target)
	}
	return conn.Send(msg)
}

// Stop closes every connection and waits for their read pumps to finish.
func (r *Registry) Stop() {
	log.Println("INFO: [REGISTRY] Stopping...")
	r.cancel()

	r.mu.Lock()
	for _, conn := range r.conns {
		conn.Close()
	}
	r.mu.Unlock()

	r.wg.Wait()
	log.Println("INFO: [REGISTRY] Stopped.")
}

func (r *Registry) readPump(conn iface.Connection) {
	remote := conn.RemoteID()
	defer r.unregister(remote, conn)

	for {
		msg, err := conn.Receive()
		if err != nil {
			var unexpected *peerconn.UnexpectedMessageError
			if errors.As(err, &unexpected) {
				if r.opts.Strict {
					log.Printf("WARN: [REGISTRY] Dropping peer %s after %v", remote, err)
					return
				}
				log.Printf("WARN: [REGISTRY] Ignoring %v from peer %s", err, remote)
				continue
			}
			if r.ctx.Err() == nil {
				log.Printf("INFO: [REGISTRY] Peer %s disconnected: %v", remote, err)
			}
			return
		}
		r.route(msg)
	}
}

// route delivers one inbound message: locally addressed traffic goes to the
// handler, traffic for another registered peer is relayed, anything else is
// dropped.
func (r *Registry) route(msg *wire.SyncMessage) {
	if msg.ToID == r.localID {
		if err := r.handler.HandleSync(r.ctx, msg); err != nil {
			log.Printf("ERROR: [REGISTRY] Sync handler failed for document %s: %v", msg.DocumentID, err)
		}
		return
	}

	if err := r.SendTo(msg.ToID, msg); err != nil {
		log.Printf("WARN: [REGISTRY] Dropping message for unreachable peer %s: %v", msg.ToID, err)
	}
}

func (r *Registry) unregister(remote wire.PeerID, conn iface.Connection) {
	conn.Close()

	r.mu.Lock()
	// Only remove the mapping if it still points at this connection; a
	// replacement may already have been registered.
	if r.conns[remote] == conn {
		delete(r.conns, remote)
	}
	r.mu.Unlock()

	log.Printf("INFO: [REGISTRY] Peer %s unregistered", remote)
}
