package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
	ws "clubportal/internal/infrastructure/websocket"
	"clubportal/internal/usecase"
	"clubportal/pkg/errors"
	"clubportal/pkg/logger"
)

// WebSocketHandler serves the live messaging stream: a per-connection
// conversation aggregator plus at most one watched thread, both torn down
// with the connection.
type WebSocketHandler struct {
	wsManager *ws.Manager
	messages  repository.MessageRepository
	directory *usecase.Directory
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Restrict in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, messages repository.MessageRepository, directory *usecase.Directory) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		messages:  messages,
		directory: directory,
	}
}

type clientFrame struct {
	Type          string `json:"type"`
	CounterpartID string `json:"counterpart_id,omitempty"`
}

type serverFrame struct {
	Type          string      `json:"type"`
	CounterpartID string      `json:"counterpart_id,omitempty"`
	Data          interface{} `json:"data"`
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, ok := c.Get("uid").(string)
	if !ok || userID == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := ws.NewClient(userID, conn)

	ctx, cancel := context.WithCancel(context.Background())

	aggregator := usecase.NewConversationAggregator(userID, h.messages, h.directory)
	if err := aggregator.Start(ctx); err != nil {
		cancel()
		conn.Close()
		return errors.Internal("Failed to start conversation stream", err)
	}

	session := &wsSession{
		viewerID: userID,
		messages: h.messages,
		client:   client,
		ctx:      ctx,
		cancel:   cancel,
	}

	client.OnMessage = session.handleFrame
	client.OnClose = session.close

	go session.forwardConversations(aggregator)

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}

// wsSession owns the live state of one connection.
type wsSession struct {
	viewerID string
	messages repository.MessageRepository
	client   *ws.Client
	ctx      context.Context
	cancel   context.CancelFunc

	mutex  sync.Mutex
	thread *usecase.Thread
}

func (s *wsSession) forwardConversations(aggregator *usecase.ConversationAggregator) {
	defer aggregator.Close()

	for conversations := range aggregator.Updates() {
		s.push(serverFrame{Type: "conversations", Data: conversations})
	}
}

func (s *wsSession) handleFrame(data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logger.Warn("Discarding malformed frame from %s: %v", s.viewerID, err)
		return
	}

	switch frame.Type {
	case "watch_thread":
		if frame.CounterpartID == "" || frame.CounterpartID == s.viewerID {
			return
		}
		s.watchThread(frame.CounterpartID)
	case "unwatch_thread":
		s.unwatchThread()
	default:
		logger.Debug("Unknown frame type %q from %s", frame.Type, s.viewerID)
	}
}

// watchThread switches the session to a fresh thread subscription. Selecting
// another conversation closes the previous thread first; no state carries
// over between opens.
func (s *wsSession) watchThread(counterpartID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.thread != nil {
		s.thread.Close()
		s.thread = nil
	}

	thread := usecase.NewThread(s.viewerID, counterpartID, s.messages)
	if err := thread.Start(s.ctx); err != nil {
		logger.Error("Failed to open thread %s/%s: %v", s.viewerID, counterpartID, err)
		return
	}
	s.thread = thread

	go func() {
		for messages := range thread.Updates() {
			s.push(serverFrame{Type: "thread", CounterpartID: counterpartID, Data: messages})
		}
	}()
}

func (s *wsSession) unwatchThread() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.thread != nil {
		s.thread.Close()
		s.thread = nil
	}
}

func (s *wsSession) close() {
	s.unwatchThread()
	s.cancel()
}

// push hands a frame to the write pump. Send is never closed, so a frame
// that was already in flight when the connection tore down lands in a
// buffer nobody drains instead of crashing the sender.
func (s *wsSession) push(frame serverFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Error("Failed to marshal %s frame: %v", frame.Type, err)
		return
	}

	select {
	case s.client.Send <- payload:
	case <-s.client.Done():
	case <-s.ctx.Done():
	}
}

// NotifyRecipients nudges online recipients after a successful fan-out so
// their conversation lists refresh even if their live query lags.
func NotifyRecipients(manager *ws.Manager, sender *entity.UserProfile, result *usecase.ComposeResult) {
	notification := serverFrame{
		Type: "new_message",
		Data: map[string]interface{}{
			"sender_id":   sender.ID,
			"sender_name": sender.DisplayName(),
		},
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return
	}

	for _, delivery := range result.Deliveries {
		if !delivery.Failed() {
			manager.SendToUser(delivery.RecipientID, payload)
		}
	}
}
