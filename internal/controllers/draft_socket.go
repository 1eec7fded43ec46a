package controllers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"routedesk/internal/routeform"
)

const writeWait = 10 * time.Second

// DraftEvent is what listeners of a draft receive on every change.
type DraftEvent struct {
	DraftID    string          `json:"draft_id"`
	State      routeform.State `json:"state"`
	Generation uint64          `json:"generation"`
	Error      string          `json:"error,omitempty"`
}

func eventOf(s routeform.Snapshot) DraftEvent {
	return DraftEvent{DraftID: s.ID, State: s.State, Generation: s.Generation, Error: s.Error}
}

// DraftHub keeps the websocket listeners of each draft and fans draft events
// out to them. Every listener has its own writer goroutine and queue, so a
// slow connection only ever delays itself.
type DraftHub struct {
	mu        sync.Mutex
	clients   map[string]map[*websocket.Conn]*listener // draft id -> listeners
	broadcast chan DraftEvent
	upgrader  websocket.Upgrader
	done      chan struct{}
}

const listenerBuffer = 16

type listener struct {
	conn *websocket.Conn
	send chan DraftEvent
}

// enqueue never blocks. A full queue loses its oldest event so the newest
// state always gets through.
func (l *listener) enqueue(ev DraftEvent) {
	select {
	case l.send <- ev:
		return
	default:
	}
	select {
	case <-l.send:
	default:
	}
	select {
	case l.send <- ev:
	default:
	}
}

// NewDraftHub starts a hub. Origins are checked against allowed; "*" allows
// any.
func NewDraftHub(allowed []string) *DraftHub {
	h := &DraftHub{
		clients:   make(map[string]map[*websocket.Conn]*listener),
		broadcast: make(chan DraftEvent, 100),
		done:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowed),
		},
	}
	go h.run()
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

func (h *DraftHub) run() {
	for {
		select {
		case ev := <-h.broadcast:
			h.send(ev)
		case <-h.done:
			return
		}
	}
}

func (h *DraftHub) send(ev DraftEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.clients[ev.DraftID] {
		l.enqueue(ev)
	}
}

// writePump owns every write to l.conn. It stops when the queue is closed or
// a write fails.
func (h *DraftHub) writePump(draftID string, l *listener) {
	for ev := range l.send {
		_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := l.conn.WriteJSON(ev); err != nil {
			logrus.WithError(err).WithField("draft_id", draftID).Info("Draft listener gone, unregistering")
			h.Unregister(draftID, l.conn)
			return
		}
	}
}

// Publish queues a draft change for its listeners. It never blocks; when the
// queue is full the event is dropped, since the next one supersedes it.
func (h *DraftHub) Publish(s routeform.Snapshot) {
	select {
	case h.broadcast <- eventOf(s):
	default:
		logrus.WithField("draft_id", s.ID).Warn("Draft event queue full, dropping event")
	}
}

// Register adds conn as a listener of draftID. current is the first event it
// receives.
func (h *DraftHub) Register(draftID string, conn *websocket.Conn, current routeform.Snapshot) {
	l := &listener{conn: conn, send: make(chan DraftEvent, listenerBuffer)}
	l.send <- eventOf(current)

	h.mu.Lock()
	if h.clients[draftID] == nil {
		h.clients[draftID] = make(map[*websocket.Conn]*listener)
	}
	h.clients[draftID][conn] = l
	h.mu.Unlock()

	logrus.WithField("draft_id", draftID).Info("Draft listener registered")
	go h.writePump(draftID, l)
}

// Unregister removes conn and closes it.
func (h *DraftHub) Unregister(draftID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(draftID, conn)
}

func (h *DraftHub) removeLocked(draftID string, conn *websocket.Conn) {
	conns, ok := h.clients[draftID]
	if !ok {
		return
	}
	l, ok := conns[conn]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.clients, draftID)
	}
	close(l.send)
	conn.Close()
}

// Listeners returns how many connections follow draftID.
func (h *DraftHub) Listeners(draftID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[draftID])
}

// Close stops the hub and drops every connection.
func (h *DraftHub) Close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conns := range h.clients {
		for conn, l := range conns {
			close(l.send)
			conn.Close()
		}
		delete(h.clients, id)
	}
}

// HandleDraftWebSocket streams events for the draft in the path. Listeners
// only read; anything they send is discarded until they disconnect.
func (a *API) HandleDraftWebSocket(c *gin.Context) {
	d, ok := a.draft(c)
	if !ok {
		return
	}

	conn, err := a.Hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade draft websocket")
		return
	}

	id := d.ID()
	a.Hub.Register(id, conn, d.Snapshot())
	defer a.Hub.Unregister(id, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithField("draft_id", id).Warn("Draft websocket closed unexpectedly")
			}
			return
		}
	}
}
