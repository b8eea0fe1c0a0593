package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"x-rigid/backend/internal/serialize"
	"x-rigid/backend/internal/world"
)

// ErrUnknownBody - кадр синхронизации пришел раньше пакета появления
var ErrUnknownBody = errors.New("sync for unknown body")

// MirrorBody - клиентская копия тела
type MirrorBody struct {
	Spawn world.SpawnInfo
	State world.State
}

// Mirror собирает состояние тел на стороне клиента из кадров сервера
type Mirror struct {
	mu     sync.RWMutex
	bodies map[int32]MirrorBody
}

// NewMirror создает пустое зеркало
func NewMirror() *Mirror {
	return &Mirror{bodies: make(map[int32]MirrorBody)}
}

// Apply применяет кадр к зеркалу
func (m *Mirror) Apply(f Frame) error {
	switch f.Kind {
	case FrameSpawn:
		info, err := world.DecodeSpawn(f.Payload)
		if err != nil {
			return fmt.Errorf("spawn %d: %w", f.EntityID, err)
		}
		if info.EntityID != f.EntityID {
			return fmt.Errorf("spawn %d: payload carries entity %d", f.EntityID, info.EntityID)
		}
		m.mu.Lock()
		m.bodies[f.EntityID] = MirrorBody{
			Spawn: info,
			State: world.State{
				Rotation:        info.Rotation,
				Position:        info.Position,
				LinearVelocity:  info.LinearVelocity,
				AngularVelocity: info.AngularVelocity,
			},
		}
		m.mu.Unlock()

	case FrameSync:
		s, err := world.DecodeState(serialize.NewReader(f.Payload))
		if err != nil {
			return fmt.Errorf("sync %d: %w", f.EntityID, err)
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		b, ok := m.bodies[f.EntityID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownBody, f.EntityID)
		}
		b.State = s
		m.bodies[f.EntityID] = b

	case FrameDespawn:
		m.mu.Lock()
		delete(m.bodies, f.EntityID)
		m.mu.Unlock()

	default:
		return fmt.Errorf("%w: %d", ErrUnknownFrame, f.Kind)
	}
	return nil
}

// Body возвращает копию тела по id сущности
func (m *Mirror) Body(id int32) (MirrorBody, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bodies[id]
	return b, ok
}

// Bodies возвращает копии тел по возрастанию id сущности
func (m *Mirror) Bodies() []MirrorBody {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MirrorBody, 0, len(m.bodies))
	for _, b := range m.bodies {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spawn.EntityID < out[j].Spawn.EntityID })
	return out
}

// Len возвращает число известных тел
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bodies)
}

// Client - клиент канала синхронизации
type Client struct {
	conn   *websocket.Conn
	writer *SafeWriter
}

// Dial подключается к серверу синхронизации
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn, writer: NewSafeWriter(conn)}, nil
}

// Ping отправляет пинг с временем клиента
func (c *Client) Ping(clientTime float64) error {
	return c.writer.WriteJSON(map[string]any{
		"type":        MessageTypePing,
		"client_time": clientTime,
	})
}

// Run читает сообщения до ошибки соединения или отмены ctx.
// Бинарные кадры уходят в onFrame, текстовые сообщения в onMessage (может быть nil).
func (c *Client) Run(ctx context.Context, onFrame func(Frame) error, onMessage func(map[string]any)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.writer.Close() })
	defer stop()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			f, err := DecodeFrame(data)
			if err != nil {
				return err
			}
			if err := onFrame(f); err != nil {
				return err
			}
		case websocket.TextMessage:
			if onMessage == nil {
				continue
			}
			var message map[string]any
			if err := json.Unmarshal(data, &message); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			onMessage(message)
		}
	}
}

// Close закрывает соединение
func (c *Client) Close() error {
	return c.writer.Close()
}
