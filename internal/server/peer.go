package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"coview/internal/constants"
)

// wsPeer wraps one websocket connection behind the engine's Conn contract.
// A single writer goroutine drains the outbound queue; Send is a
// non-blocking enqueue that drops when the peer is closed or the queue is
// full.
type wsPeer struct {
	id         string
	conn       *websocket.Conn
	remoteAddr string

	queue     chan interface{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func newPeer(conn *websocket.Conn, remoteAddr string) *wsPeer {
	p := &wsPeer{
		id:         uuid.New().String(),
		conn:       conn,
		remoteAddr: remoteAddr,
		queue:      make(chan interface{}, constants.SendQueueSize),
		done:       make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

func (p *wsPeer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case v := <-p.queue:
			p.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
			if err := p.conn.WriteJSON(v); err != nil {
				logrus.Debugf("✂️  Write to %s failed, closing: %v", p.remoteAddr, err)
				p.Close()
				return
			}
		}
	}
}

// Send enqueues one outbound event. Closed or congested peers drop it.
func (p *wsPeer) Send(v interface{}) {
	if p.closed.Load() {
		return
	}
	select {
	case p.queue <- v:
	default:
		logrus.Warnf("📬 Outbound queue full for %s, dropping message", p.remoteAddr)
	}
}

func (p *wsPeer) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		p.conn.Close()
	})
}

func (p *wsPeer) IsOpen() bool {
	return !p.closed.Load()
}

func (p *wsPeer) RemoteAddr() string {
	return p.remoteAddr
}

func (p *wsPeer) ID() string {
	return p.id
}
