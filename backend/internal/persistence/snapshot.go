package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
	"x-rigid/backend/internal/world"
)

// SnapshotVersion - текущая версия формата снимка
const SnapshotVersion = 1

// Header - первая строка снимка (JSON), читается без распаковки тел
type Header struct {
	Version   int    `json:"version" msgpack:"version"`
	CreatedAt string `json:"created_at" msgpack:"created_at"`
	Bodies    int    `json:"bodies" msgpack:"bodies"`
}

// BodyV1 - тело в снимке
type BodyV1 struct {
	World    string       `msgpack:"world"`
	UUID     string       `msgpack:"uuid"`
	EntityID int32        `msgpack:"entity_id"`
	TypeID   int32        `msgpack:"type_id"`
	Name     string       `msgpack:"name"`
	Record   world.Record `msgpack:"record"`
}

// SnapshotV1 - снимок всех твердых тел
type SnapshotV1 struct {
	Header Header   `msgpack:"header"`
	Bodies []BodyV1 `msgpack:"bodies"`
}

// NewSnapshot строит снимок из записей
func NewSnapshot(bodies []StoredBody, now time.Time) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{
			Version:   SnapshotVersion,
			CreatedAt: now.UTC().Format(time.RFC3339),
			Bodies:    len(bodies),
		},
		Bodies: make([]BodyV1, 0, len(bodies)),
	}
	for _, b := range bodies {
		snap.Bodies = append(snap.Bodies, BodyV1{
			World:    string(b.World),
			UUID:     b.Handle.UUID.String(),
			EntityID: b.Handle.ID,
			TypeID:   b.Handle.TypeID,
			Name:     b.Name,
			Record:   b.Record,
		})
	}
	return snap
}

// StoredBodies переводит снимок обратно в записи хранилища
func (s SnapshotV1) StoredBodies() ([]StoredBody, error) {
	out := make([]StoredBody, 0, len(s.Bodies))
	for _, b := range s.Bodies {
		id, err := uuid.Parse(b.UUID)
		if err != nil {
			return nil, fmt.Errorf("snapshot body %q: %w", b.UUID, err)
		}
		out = append(out, StoredBody{
			World:  hostworld.WorldID(b.World),
			Handle: entity.Handle{ID: b.EntityID, TypeID: b.TypeID, UUID: id},
			Name:   b.Name,
			Record: b.Record,
		})
	}
	return out, nil
}

// WriteSnapshot пишет снимок: JSON-заголовок строкой, затем msgpack, все под zstd
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := msgpack.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("msgpack encode: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadSnapshot читает снимок целиком
func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// заголовок дублируется внутри msgpack
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := msgpack.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("msgpack decode: %w", err)
	}
	if snap.Header.Version != SnapshotVersion {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader читает только заголовок снимка
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("parse header: %w", err)
	}
	return h, nil
}
