package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"x-rigid/backend/internal/world"
)

// BodySource перечисляет зарегистрированные твердые тела
type BodySource interface {
	AllBodies() []*world.RigidBody
}

// MessageHandler - обработчик текстового сообщения клиента
type MessageHandler func(conn *SafeWriter, message map[string]any) error

// SyncServer рассылает клиентам пакеты появления и синхронизации тел.
// Реализует world.StateSyncer.
type SyncServer struct {
	upgrader websocket.Upgrader
	bodies   BodySource
	logger   *log.Logger
	handlers map[string]MessageHandler

	clients   map[*SafeWriter]bool
	clientsMu sync.Mutex

	framesSent atomic.Int64
}

var _ world.StateSyncer = (*SyncServer)(nil)

// NewSyncServer создает сервер синхронизации
func NewSyncServer(bodies BodySource, logger *log.Logger) *SyncServer {
	if logger == nil {
		logger = log.Default()
	}
	s := &SyncServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bodies:   bodies,
		logger:   logger,
		handlers: make(map[string]MessageHandler),
		clients:  make(map[*SafeWriter]bool),
	}
	s.RegisterHandler(MessageTypePing, s.handlePing)
	return s
}

// RegisterHandler регистрирует обработчик для типа текстового сообщения
func (s *SyncServer) RegisterHandler(messageType string, handler MessageHandler) {
	s.handlers[messageType] = handler
}

// SyncBody рассылает опубликованное состояние тела
func (s *SyncServer) SyncBody(rb *world.RigidBody) {
	s.Broadcast(EncodeFrame(Frame{
		Kind:     FrameSync,
		EntityID: rb.Handle().ID,
		Payload:  rb.SyncPayload(),
	}))
}

// Spawn рассылает пакет появления нового тела
func (s *SyncServer) Spawn(rb *world.RigidBody) {
	s.Broadcast(spawnFrame(rb))
}

// Despawn сообщает клиентам об удалении тела
func (s *SyncServer) Despawn(rb *world.RigidBody) {
	s.Broadcast(EncodeFrame(Frame{Kind: FrameDespawn, EntityID: rb.Handle().ID}))
}

// Broadcast отправляет кадр всем клиентам. Клиент с ошибкой записи отключается.
func (s *SyncServer) Broadcast(frame []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for client := range s.clients {
		if err := client.WriteBinary(frame); err != nil {
			s.logger.Printf("[WSServer] write failed, dropping client: %v", err)
			delete(s.clients, client)
			_ = client.Close()
			continue
		}
		s.framesSent.Add(1)
	}
}

// ClientCount возвращает число подключенных клиентов
func (s *SyncServer) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// FramesSent возвращает число отправленных бинарных кадров
func (s *SyncServer) FramesSent() int64 {
	return s.framesSent.Load()
}

// Close отключает всех клиентов
func (s *SyncServer) Close() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		_ = client.Close()
	}
	clear(s.clients)
}

// HandleWS обрабатывает WebSocket соединения
func (s *SyncServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[WSServer] upgrade error: %v", err)
		return
	}
	safeWriter := NewSafeWriter(conn)

	if err := safeWriter.WriteJSON(NewInfoMessage("connected to x-rigid")); err != nil {
		s.logger.Printf("[WSServer] welcome message: %v", err)
		_ = safeWriter.Close()
		return
	}

	// Пакеты появления отправляются под clientsMu, чтобы синхронизация
	// не обогнала появление тела у нового клиента.
	s.clientsMu.Lock()
	sent := 0
	for _, rb := range s.bodies.AllBodies() {
		if err := safeWriter.WriteBinary(spawnFrame(rb)); err != nil {
			s.clientsMu.Unlock()
			s.logger.Printf("[WSServer] initial spawn for %s: %v", rb.Handle(), err)
			_ = safeWriter.Close()
			return
		}
		sent++
	}
	s.clients[safeWriter] = true
	s.clientsMu.Unlock()
	s.framesSent.Add(int64(sent))

	s.logger.Printf("[WSServer] client %s connected, %d bodies sent", conn.RemoteAddr(), sent)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, safeWriter)
		s.clientsMu.Unlock()
		_ = safeWriter.Close()
		s.logger.Printf("[WSServer] client %s disconnected", conn.RemoteAddr())
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var message map[string]any
		if err := json.Unmarshal(data, &message); err != nil {
			s.logger.Printf("[WSServer] bad message: %v", err)
			continue
		}
		kind, _ := message["type"].(string)
		handler, ok := s.handlers[kind]
		if !ok {
			s.logger.Printf("[WSServer] no handler for message type %q", kind)
			continue
		}
		if err := handler(safeWriter, message); err != nil {
			s.logger.Printf("[WSServer] handle %s: %v", kind, err)
		}
	}
}

func (s *SyncServer) handlePing(conn *SafeWriter, message map[string]any) error {
	return conn.WriteJSON(NewPongMessage(clientTimeOf(message)))
}

func spawnFrame(rb *world.RigidBody) []byte {
	return EncodeFrame(Frame{
		Kind:     FrameSpawn,
		EntityID: rb.Handle().ID,
		Payload:  rb.SpawnPayload(),
	})
}
