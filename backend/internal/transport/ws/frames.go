package ws

import (
	"errors"
	"fmt"

	"x-rigid/backend/internal/serialize"
)

// FrameKind - первый байт бинарного кадра
type FrameKind byte

const (
	FrameSpawn   FrameKind = 1 // пакет появления тела
	FrameSync    FrameKind = 2 // пакет синхронизации состояния
	FrameDespawn FrameKind = 3 // тело удалено, без полезной нагрузки
)

func (k FrameKind) String() string {
	switch k {
	case FrameSpawn:
		return "spawn"
	case FrameSync:
		return "sync"
	case FrameDespawn:
		return "despawn"
	default:
		return fmt.Sprintf("FrameKind(%d)", byte(k))
	}
}

// ErrUnknownFrame возвращается для кадра с неизвестным типом
var ErrUnknownFrame = errors.New("unknown frame kind")

// Frame - кадр канала синхронизации: тип, id сущности и полезная нагрузка
type Frame struct {
	Kind     FrameKind
	EntityID int32
	Payload  []byte
}

// EncodeFrame собирает кадр: 1 байт типа, int32 id сущности, полезная нагрузка
func EncodeFrame(f Frame) []byte {
	w := serialize.NewWriter(5 + len(f.Payload))
	_ = w.WriteByte(byte(f.Kind))
	w.WriteInt(f.EntityID)
	out := w.Bytes()
	return append(out, f.Payload...)
}

// DecodeFrame разбирает кадр, собранный EncodeFrame
func DecodeFrame(data []byte) (Frame, error) {
	r := serialize.NewReader(data)
	kind, err := r.ReadByte()
	if err != nil {
		return Frame{}, fmt.Errorf("frame kind: %w", err)
	}
	id, err := r.ReadInt()
	if err != nil {
		return Frame{}, fmt.Errorf("frame entity id: %w", err)
	}

	f := Frame{Kind: FrameKind(kind), EntityID: id}
	switch f.Kind {
	case FrameSpawn, FrameSync, FrameDespawn:
	default:
		return f, fmt.Errorf("%w: %d", ErrUnknownFrame, kind)
	}
	if n := r.Remaining(); n > 0 {
		f.Payload = data[len(data)-n:]
	}
	return f, nil
}
