package ws

import "time"

// Типы текстовых сообщений. Состояние тел идет бинарными кадрами.
const (
	MessageTypePing = "ping" // Пинг для измерения задержки
	MessageTypePong = "pong" // Ответ на пинг
	MessageTypeInfo = "info" // Информационное сообщение
)

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// NewPongMessage создает ответ на пинг
func NewPongMessage(clientTime float64) map[string]any {
	return map[string]any{
		"type":        MessageTypePong,
		"client_time": clientTime,
		"server_time": GetCurrentServerTime(),
	}
}

// NewInfoMessage создает информационное сообщение
func NewInfoMessage(message string) map[string]any {
	return map[string]any{
		"type":    MessageTypeInfo,
		"message": message,
	}
}

// clientTimeOf достает время клиента из пинга. Поддерживает оба написания поля.
func clientTimeOf(message map[string]any) float64 {
	if ct, ok := message["client_time"].(float64); ok {
		return ct
	}
	if ct, ok := message["clientTime"].(float64); ok {
		return ct
	}
	return float64(GetCurrentServerTime())
}
