package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

func TestSafeWriter_WriteBinary_Concurrency(t *testing.T) {
	received := make(chan []byte, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		for i := 0; i < 10; i++ {
			messageType, msg, err := conn.ReadMessage()
			if err != nil {
				t.Errorf("Error reading message: %v", err)
				return
			}
			if messageType != websocket.BinaryMessage {
				t.Errorf("message type = %d, want binary", messageType)
			}
			received <- msg
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	wsConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket server: %v", err)
	}
	defer wsConn.Close()

	writer := NewSafeWriter(wsConn)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			frame := EncodeFrame(Frame{Kind: FrameDespawn, EntityID: id})
			if err := writer.WriteBinary(frame); err != nil {
				t.Errorf("Error writing message: %v", err)
			}
		}(int32(i))
	}
	wg.Wait()

	// Каждый кадр должен прийти целым и ровно один раз
	seen := make(map[int32]bool)
	for i := 0; i < 10; i++ {
		f, err := DecodeFrame(<-received)
		if err != nil {
			t.Fatalf("DecodeFrame() error = %v", err)
		}
		seen[f.EntityID] = true
	}
	if len(seen) != 10 {
		t.Errorf("Expected 10 unique frames, got %d", len(seen))
	}
}

func TestSafeWriter_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	wsConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket server: %v", err)
	}

	writer := NewSafeWriter(wsConn)
	if err := writer.Close(); err != nil {
		t.Errorf("Error closing connection: %v", err)
	}

	// Запись в закрытое соединение должна вернуть ошибку
	if err := writer.WriteJSON("test"); err == nil {
		t.Error("Expected error when writing to closed connection, got nil")
	}
}
