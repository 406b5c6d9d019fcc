package statusservice

import (
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// WsConn is interface for websocket handling in status service
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	WriteJSON(v interface{}) error
}

// ConnKeeper tracks websocket subscriptions by session ID.
// A client subscribes by sending the session ID as a text frame,
// resending a frame moves the subscription to the new ID
type ConnKeeper struct {
	lock    sync.Mutex
	byID    map[string]map[WsConn]struct{}
	connIDs map[WsConn]string
	timeout time.Duration
}

// NewConnKeeper creates subscription manager
func NewConnKeeper() *ConnKeeper {
	res := &ConnKeeper{}
	res.byID = make(map[string]map[WsConn]struct{})
	res.connIDs = make(map[WsConn]string)
	// drop idle connections after a while
	res.timeout = time.Minute * 30
	return res
}

// HandleConnection serves one websocket until it closes or goes idle too long
func (kp *ConnKeeper) HandleConnection(conn WsConn) error {
	defer kp.drop(conn)
	defer conn.Close()
	readCh := make(chan string)
	go kp.readLoop(conn, readCh)

	deadline := time.After(kp.timeout)
	for {
		select {
		case <-deadline:
			goapp.Log.Debug().Msg("ws connection timeout")
			return nil
		case id, ok := <-readCh:
			if !ok {
				goapp.Log.Debug().Msg("ws connection closed")
				return nil
			}
			kp.subscribe(conn, id)
			deadline = time.After(kp.timeout)
		}
	}
}

func (kp *ConnKeeper) readLoop(conn WsConn, out chan<- string) {
	defer close(out)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			goapp.Log.Debug().Err(err).Msg("ws read ended")
			return
		}
		id := strings.TrimSpace(string(msg))
		if id == "" {
			continue
		}
		goapp.Log.Debug().Str("ID", goapp.Sanitize(id)).Msg("ws subscribe")
		out <- id
	}
}

// GetConnections returns subscribers for the session ID
func (kp *ConnKeeper) GetConnections(id string) ([]WsConn, bool) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	conns, found := kp.byID[id]
	if !found {
		return nil, false
	}
	res := make([]WsConn, 0, len(conns))
	for c := range conns {
		res = append(res, c)
	}
	return res, true
}

func (kp *ConnKeeper) subscribe(conn WsConn, id string) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	kp.dropNoLock(conn)
	kp.connIDs[conn] = id
	conns, found := kp.byID[id]
	if !found {
		conns = map[WsConn]struct{}{}
		kp.byID[id] = conns
	}
	conns[conn] = struct{}{}
	goapp.Log.Debug().Int("active", len(kp.connIDs)).Msg("ws subscribed")
}

func (kp *ConnKeeper) drop(conn WsConn) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	kp.dropNoLock(conn)
	goapp.Log.Debug().Int("active", len(kp.connIDs)).Msg("ws dropped")
}

func (kp *ConnKeeper) dropNoLock(conn WsConn) {
	id, found := kp.connIDs[conn]
	if found {
		conns, found := kp.byID[id]
		if found {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(kp.byID, id)
			}
		}
	}
	delete(kp.connIDs, conn)
}
