// Package push delivers stored daily summaries to connected websocket clients.
package push

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/summary"
	"github.com/rcliao/voicenote/internal/trace"
)

// WriteTimeout bounds each message write.
const WriteTimeout = 10 * time.Second

// Pending is the part of store.Store the hub needs.
type Pending interface {
	PendingSummaries(ctx context.Context, userID string) ([]model.DailySummary, error)
	MarkPushed(ctx context.Context, id string) error
}

// SummaryMessage is sent once per undelivered summary.
type SummaryMessage struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Date        string `json:"date"`
	SummaryText string `json:"summary_text"`
	Keywords    string `json:"keywords,omitempty"`
}

// Hub tracks websocket connections per user.
type Hub struct {
	store Pending

	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}

	deliver sync.Mutex // serializes Deliver so a summary is sent once
}

// NewHub creates an empty hub.
func NewHub(store Pending) *Hub {
	return &Hub{
		store: store,
		conns: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades GET /ws?user_id=... and pushes that user's pending
// summaries right away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	h.add(userID, conn)
	defer h.remove(userID, conn)

	log := trace.Logger(r.Context()).With("user_id", userID)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// clients only listen; CloseRead discards input and cancels ctx on close
	ctx := conn.CloseRead(context.Background())

	if _, err := h.Deliver(r.Context(), userID); err != nil {
		log.Warn("initial delivery failed", "error", err)
	}

	<-ctx.Done()
	log.Debug("websocket closed")
}

// Deliver sends every pending summary of userID to its open connections and
// marks each one pushed after at least one successful write.
func (h *Hub) Deliver(ctx context.Context, userID string) (int, error) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	conns := h.connsFor(userID)
	if len(conns) == 0 {
		return 0, nil
	}

	pending, err := h.store.PendingSummaries(ctx, userID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, s := range pending {
		msg := SummaryMessage{
			Type:        "daily_summary",
			ID:          s.ID,
			UserID:      s.UserID,
			Date:        s.Date,
			SummaryText: s.SummaryText,
			Keywords:    s.Keywords,
		}

		ok := false
		for _, c := range conns {
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			if err := wsjson.Write(wctx, c, msg); err != nil {
				trace.Logger(ctx).Debug("websocket write failed", "user_id", userID, "error", err)
			} else {
				ok = true
			}
			cancel()
		}
		if !ok {
			continue
		}
		if err := h.store.MarkPushed(ctx, s.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// AfterRun pushes the summaries a batch run just created. It has the shape of
// summary.Job.OnComplete hooks.
func (h *Hub) AfterRun(ctx context.Context, out summary.Outcome) {
	seen := map[string]bool{}
	for _, s := range out.Created {
		if seen[s.UserID] {
			continue
		}
		seen[s.UserID] = true
		if n, err := h.Deliver(ctx, s.UserID); err != nil {
			trace.Logger(ctx).Warn("summary push failed", "user_id", s.UserID, "error", err)
		} else if n > 0 {
			trace.Logger(ctx).Info("summaries pushed", "user_id", s.UserID, "count", n)
		}
	}
}

// Connected returns the number of open connections for userID.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *Hub) add(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][c] = struct{}{}
}

func (h *Hub) remove(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], c)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

func (h *Hub) connsFor(userID string) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		out = append(out, c)
	}
	return out
}
