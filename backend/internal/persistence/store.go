package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
	"x-rigid/backend/internal/world"
)

// ErrStoreClosed возвращается при обращении к закрытому хранилищу
var ErrStoreClosed = errors.New("record store is closed")

// StoredBody - запись тела вместе с идентичностью сущности
type StoredBody struct {
	World     hostworld.WorldID
	Handle    entity.Handle
	Name      string
	Record    world.Record
	UpdatedAt time.Time
}

// Store хранит долговременные записи твердых тел в SQLite
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

// OpenStore открывает (или создает) базу записей
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rigid_bodies (
			uuid TEXT PRIMARY KEY,
			world TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			type_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			record BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS rigid_bodies_world ON rigid_bodies(world);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close закрывает базу
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

const upsertBody = `INSERT INTO rigid_bodies (uuid, world, entity_id, type_id, name, record, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(uuid) DO UPDATE SET
		world = excluded.world,
		entity_id = excluded.entity_id,
		type_id = excluded.type_id,
		name = excluded.name,
		record = excluded.record,
		updated_at = excluded.updated_at;`

// Save записывает тела одной транзакцией
func (s *Store) Save(ctx context.Context, bodies []StoredBody) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if len(bodies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertBody)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range bodies {
		data, err := world.MarshalRecord(b.Record)
		if err != nil {
			return fmt.Errorf("body %s: %w", b.Handle.UUID, err)
		}
		updated := b.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			b.Handle.UUID.String(), string(b.World), b.Handle.ID, b.Handle.TypeID, b.Name,
			data, updated.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("save body %s: %w", b.Handle.UUID, err)
		}
	}
	return tx.Commit()
}

// SaveBodies снимает записи с тел и сохраняет их
func (s *Store) SaveBodies(ctx context.Context, bodies []*world.RigidBody) error {
	return s.Save(ctx, Capture(bodies, time.Now()))
}

// Capture переводит тела в записи хранилища
func Capture(bodies []*world.RigidBody, now time.Time) []StoredBody {
	out := make([]StoredBody, 0, len(bodies))
	for _, rb := range bodies {
		e := rb.Entity()
		out = append(out, StoredBody{
			World:     e.World().ID(),
			Handle:    rb.Handle(),
			Name:      e.Name(),
			Record:    rb.Record(),
			UpdatedAt: now,
		})
	}
	return out
}

const selectBody = `SELECT uuid, world, entity_id, type_id, name, record, updated_at FROM rigid_bodies`

// Load возвращает запись по UUID сущности
func (s *Store) Load(ctx context.Context, id uuid.UUID) (StoredBody, bool, error) {
	if s.closed.Load() {
		return StoredBody{}, false, ErrStoreClosed
	}
	row := s.db.QueryRowContext(ctx, selectBody+` WHERE uuid = ?`, id.String())
	b, err := scanBody(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredBody{}, false, nil
	}
	if err != nil {
		return StoredBody{}, false, err
	}
	return b, true, nil
}

// LoadWorld возвращает все записи мира в порядке сущностей
func (s *Store) LoadWorld(ctx context.Context, wid hostworld.WorldID) ([]StoredBody, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, selectBody+` WHERE world = ? ORDER BY entity_id`, string(wid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredBody
	for rows.Next() {
		b, err := scanBody(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Delete удаляет запись сущности
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM rigid_bodies WHERE uuid = ?`, id.String())
	return err
}

// Count возвращает число записей
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrStoreClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rigid_bodies`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBody(row scanner) (StoredBody, error) {
	var (
		id, wid, name, updated string
		entityID, typeID       int32
		data                   []byte
	)
	if err := row.Scan(&id, &wid, &entityID, &typeID, &name, &data, &updated); err != nil {
		return StoredBody{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return StoredBody{}, fmt.Errorf("row uuid %q: %w", id, err)
	}
	rec, err := world.UnmarshalRecord(data)
	if err != nil {
		return StoredBody{}, fmt.Errorf("row %s: %w", id, err)
	}
	at, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return StoredBody{}, fmt.Errorf("row %s updated_at: %w", id, err)
	}

	return StoredBody{
		World:     hostworld.WorldID(wid),
		Handle:    entity.Handle{ID: entityID, TypeID: typeID, UUID: parsed},
		Name:      name,
		Record:    rec,
		UpdatedAt: at,
	}, nil
}
