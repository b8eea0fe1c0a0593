// Package serialize реализует бинарный формат пакетов синхронизации:
// big-endian числа, VarInt и UUID как два int64.
package serialize

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	ErrShortBuffer  = errors.New("serialize: buffer too short")
	ErrVarIntTooBig = errors.New("serialize: varint is too big")
)

const maxVarIntBytes = 5

// Writer накапливает байты пакета
type Writer struct {
	buf []byte
}

// NewWriter создает Writer с заданной начальной емкостью
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes возвращает записанные байты
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len возвращает число записанных байт
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

func (w *Writer) WriteInt(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteLong(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteFloat(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// WriteVarInt пишет int32 группами по 7 бит, младшие группы первыми.
// Отрицательные значения всегда занимают 5 байт.
func (w *Writer) WriteVarInt(v int32) {
	u := uint32(v)
	for u >= 0x80 {
		w.buf = append(w.buf, byte(u)|0x80)
		u >>= 7
	}
	w.buf = append(w.buf, byte(u))
}

// WriteUUID пишет старшие, затем младшие 64 бита
func (w *Writer) WriteUUID(id uuid.UUID) {
	w.buf = append(w.buf, id[:]...)
}

func (w *Writer) WriteVec3(v mgl32.Vec3) {
	w.WriteFloat(v.X())
	w.WriteFloat(v.Y())
	w.WriteFloat(v.Z())
}

// WriteQuat пишет кватернион в порядке x, y, z, w
func (w *Writer) WriteQuat(q mgl32.Quat) {
	w.WriteFloat(q.X())
	w.WriteFloat(q.Y())
	w.WriteFloat(q.Z())
	w.WriteFloat(q.W)
}

// Reader читает пакет, записанный Writer
type Reader struct {
	buf []byte
	off int
}

// NewReader создает Reader поверх байт
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Remaining возвращает число непрочитанных байт
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadInt() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadLong() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) ReadFloat() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadVarInt() (int32, error) {
	var result uint32
	for i := 0; i < maxVarIntBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, ErrVarIntTooBig
}

func (r *Reader) ReadUUID() (uuid.UUID, error) {
	b, err := r.take(16)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

func (r *Reader) ReadVec3() (mgl32.Vec3, error) {
	var v mgl32.Vec3
	for i := range v {
		f, err := r.ReadFloat()
		if err != nil {
			return mgl32.Vec3{}, err
		}
		v[i] = f
	}
	return v, nil
}

func (r *Reader) ReadQuat() (mgl32.Quat, error) {
	v, err := r.ReadVec3()
	if err != nil {
		return mgl32.Quat{}, err
	}
	w, err := r.ReadFloat()
	if err != nil {
		return mgl32.Quat{}, err
	}
	return mgl32.Quat{W: w, V: v}, nil
}
