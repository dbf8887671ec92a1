// Package transport carries method calls from a caller to a host over one
// multiplexed connection.
//
// Every call gets a unique sequence number. A single reader goroutine (recvLoop)
// routes each reply to the channel its caller is waiting on, so replies may
// arrive in any order.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ one conn ──→ host
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop: ←── reply(seq=2) → pending[2] → goroutine-2 wakes up
package transport

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"libgit2dart/codec"
	"libgit2dart/message"
	"libgit2dart/middleware"
	"libgit2dart/protocol"
)

var ErrClosed = errors.New("transport closed")

// DefaultHeartbeat is how often an idle connection is probed.
const DefaultHeartbeat = 30 * time.Second

// ClientTransport manages a single multiplexed connection.
type ClientTransport struct {
	log     *slog.Logger
	conn    net.Conn
	codec   codec.Codec
	seq     uint32   // guarded by sending
	pending sync.Map // map[uint32]chan *message.Response
	sending sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClientTransport starts the reply reader and the heartbeat for conn.
func NewClientTransport(log *slog.Logger, conn net.Conn, ct codec.CodecType, heartbeat time.Duration) *ClientTransport {
	if log == nil {
		log = slog.Default()
	}
	t := &ClientTransport{
		log:    log,
		conn:   conn,
		codec:  codec.GetCodec(ct),
		closed: make(chan struct{}),
	}
	go t.recvLoop()
	if heartbeat > 0 {
		go t.heartbeatLoop(heartbeat)
	}
	return t
}

// Codec returns the codec calls on this transport are encoded with.
func (t *ClientTransport) Codec() codec.Codec {
	return t.codec
}

// Send writes call and returns its sequence number and the channel its single
// reply will arrive on. If the connection breaks first the reply is an
// "unavailable" error response.
func (t *ClientTransport) Send(call *message.MethodCall) (uint32, <-chan *message.Response, error) {
	select {
	case <-t.closed:
		return 0, nil, ErrClosed
	default:
	}

	body, err := t.codec.Encode(call)
	if err != nil {
		return 0, nil, err
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	t.seq++
	seq := t.seq

	// Register before writing so recvLoop can never see an unknown seq.
	respChan := make(chan *message.Response, 1)
	t.pending.Store(seq, respChan)

	header := protocol.Header{
		CodecType: byte(t.codec.Type()),
		MsgType:   protocol.MsgTypeCall,
		Seq:       seq,
	}
	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, err
	}

	return seq, respChan, nil
}

// Forget drops interest in seq, e.g. after the caller gave up waiting.
func (t *ClientTransport) Forget(seq uint32) {
	t.pending.Delete(seq)
}

func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.failPending(err)
			t.Close()
			return
		}
		if header.MsgType != protocol.MsgTypeReply {
			continue
		}

		resp := &message.Response{}
		if err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, resp); err != nil {
			resp = &message.Response{Status: message.StatusError, ErrorCode: "decode", ErrorMessage: err.Error()}
		}

		if ch, ok := t.pending.LoadAndDelete(header.Seq); ok {
			ch.(chan *message.Response) <- resp
		} else {
			t.log.Debug("dropping reply nobody waits for", "seq", header.Seq)
		}
	}
}

// failPending answers every outstanding call so no caller blocks forever.
func (t *ClientTransport) failPending(err error) {
	t.pending.Range(func(key, value any) bool {
		value.(chan *message.Response) <- &message.Response{
			Status:       message.StatusError,
			ErrorCode:    middleware.CodeUnavailable,
			ErrorMessage: err.Error(),
		}
		t.pending.Delete(key)
		return true
	})
}

func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
		}

		t.sending.Lock()
		err := protocol.Encode(t.conn, &protocol.Header{MsgType: protocol.MsgTypeHeartbeat}, nil)
		t.sending.Unlock()
		if err != nil {
			t.log.Debug("heartbeat failed", "remote", t.conn.RemoteAddr().String(), "error", err)
			return
		}
	}
}

// Closed is closed once the connection is gone.
func (t *ClientTransport) Closed() <-chan struct{} {
	return t.closed
}

func (t *ClientTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}
