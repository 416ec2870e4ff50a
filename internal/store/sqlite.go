package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"
)

const schema = `CREATE TABLE IF NOT EXISTS instances (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  owner INTEGER NOT NULL DEFAULT 0,
  work_mode TEXT NOT NULL DEFAULT '',
  is_setup INTEGER NOT NULL DEFAULT 0,
  qq_uin INTEGER NOT NULL DEFAULT 0,
  qq_type TEXT NOT NULL DEFAULT 'napcat',
  qq_ws_url TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS pairs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  instance_id INTEGER NOT NULL,
  qq_room_id INTEGER NOT NULL,
  tg_chat_id INTEGER NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  FOREIGN KEY (instance_id) REFERENCES instances(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_pairs_instance ON pairs(instance_id);`

// ErrNotFound reports a lookup for a row that does not exist.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	// foreign_keys is per-connection, so it has to ride the DSN to cover
	// every connection the pool opens.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	ApplySQLitePragmas(context.Background(), db)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping() error { return s.db.Ping() }

func (s *Store) String() string { return fmt.Sprintf("Store{%p}", s.db) }

func (s *Store) CreateInstance(ctx context.Context, inst Instance) (Instance, error) {
	const q = `INSERT INTO instances (owner, work_mode, is_setup, qq_uin, qq_type, qq_ws_url)
VALUES (?, ?, ?, ?, ?, ?);`
	res, err := s.db.ExecContext(ctx, q, inst.Owner, inst.WorkMode, boolInt(inst.IsSetup),
		inst.QQBot.Uin, nz(inst.QQBot.Type, BotTypeNapCat), inst.QQBot.WSURL)
	if err != nil {
		return Instance{}, errors.Wrap(err, "insert instance")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Instance{}, errors.Wrap(err, "instance id")
	}
	inst.ID = id
	inst.QQBot.Type = nz(inst.QQBot.Type, BotTypeNapCat)
	return inst, nil
}

func (s *Store) GetInstance(ctx context.Context, id int64) (Instance, error) {
	const q = `SELECT i.id, i.owner, i.work_mode, i.is_setup, i.qq_uin, i.qq_type, i.qq_ws_url,
  (SELECT COUNT(*) FROM pairs p WHERE p.instance_id = i.id)
FROM instances i WHERE i.id = ?;`
	inst, err := scanInstance(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return Instance{}, ErrNotFound
	}
	if err != nil {
		return Instance{}, errors.Wrap(err, "get instance")
	}
	return inst, nil
}

func (s *Store) ListInstances(ctx context.Context) ([]Instance, error) {
	const q = `SELECT i.id, i.owner, i.work_mode, i.is_setup, i.qq_uin, i.qq_type, i.qq_ws_url,
  (SELECT COUNT(*) FROM pairs p WHERE p.instance_id = i.id)
FROM instances i ORDER BY i.id;`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "list instances")
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan instance")
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate instances")
	}
	return out, nil
}

func (s *Store) UpdateInstance(ctx context.Context, inst Instance) error {
	const q = `UPDATE instances SET owner = ?, work_mode = ?, is_setup = ?, qq_uin = ?, qq_type = ?, qq_ws_url = ?
WHERE id = ?;`
	res, err := s.db.ExecContext(ctx, q, inst.Owner, inst.WorkMode, boolInt(inst.IsSetup),
		inst.QQBot.Uin, nz(inst.QQBot.Type, BotTypeNapCat), inst.QQBot.WSURL, inst.ID)
	if err != nil {
		return errors.Wrap(err, "update instance")
	}
	return noneAffected(res)
}

// DeleteInstance removes an instance; its pairs go with it.
func (s *Store) DeleteInstance(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?;`, id)
	if err != nil {
		return errors.Wrap(err, "delete instance")
	}
	return noneAffected(res)
}

func (s *Store) CreatePair(ctx context.Context, pair Pair) (Pair, error) {
	if _, err := s.GetInstance(ctx, pair.InstanceID); err != nil {
		return Pair{}, err
	}
	const q = `INSERT INTO pairs (instance_id, qq_room_id, tg_chat_id, enabled) VALUES (?, ?, ?, ?);`
	res, err := s.db.ExecContext(ctx, q, pair.InstanceID, pair.QQRoomID, pair.TGChatID, boolInt(pair.Enabled))
	if err != nil {
		return Pair{}, errors.Wrap(err, "insert pair")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Pair{}, errors.Wrap(err, "pair id")
	}
	pair.ID = id
	return pair, nil
}

func (s *Store) GetPair(ctx context.Context, id int64) (Pair, error) {
	const q = `SELECT id, instance_id, qq_room_id, tg_chat_id, enabled FROM pairs WHERE id = ?;`
	var (
		pair    Pair
		enabled int
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&pair.ID, &pair.InstanceID, &pair.QQRoomID, &pair.TGChatID, &enabled)
	if err == sql.ErrNoRows {
		return Pair{}, ErrNotFound
	}
	if err != nil {
		return Pair{}, errors.Wrap(err, "get pair")
	}
	pair.Enabled = enabled != 0
	return pair, nil
}

// ListPairs returns pairs, optionally restricted to one instance
// (instanceID <= 0 means all).
func (s *Store) ListPairs(ctx context.Context, instanceID int64) ([]Pair, error) {
	q := `SELECT id, instance_id, qq_room_id, tg_chat_id, enabled FROM pairs`
	var args []any
	if instanceID > 0 {
		q += ` WHERE instance_id = ?`
		args = append(args, instanceID)
	}
	q += ` ORDER BY id;`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list pairs")
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var (
			pair    Pair
			enabled int
		)
		if err := rows.Scan(&pair.ID, &pair.InstanceID, &pair.QQRoomID, &pair.TGChatID, &enabled); err != nil {
			return nil, errors.Wrap(err, "scan pair")
		}
		pair.Enabled = enabled != 0
		out = append(out, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate pairs")
	}
	return out, nil
}

func (s *Store) UpdatePair(ctx context.Context, pair Pair) error {
	const q = `UPDATE pairs SET qq_room_id = ?, tg_chat_id = ?, enabled = ? WHERE id = ?;`
	res, err := s.db.ExecContext(ctx, q, pair.QQRoomID, pair.TGChatID, boolInt(pair.Enabled), pair.ID)
	if err != nil {
		return errors.Wrap(err, "update pair")
	}
	return noneAffected(res)
}

func (s *Store) DeletePair(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pairs WHERE id = ?;`, id)
	if err != nil {
		return errors.Wrap(err, "delete pair")
	}
	return noneAffected(res)
}

func (s *Store) CountPairs(ctx context.Context, instanceID int64) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pairs WHERE instance_id = ?;`, instanceID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count pairs")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (Instance, error) {
	var (
		inst    Instance
		isSetup int
	)
	err := row.Scan(&inst.ID, &inst.Owner, &inst.WorkMode, &isSetup,
		&inst.QQBot.Uin, &inst.QQBot.Type, &inst.QQBot.WSURL, &inst.PairCount)
	if err != nil {
		return Instance{}, err
	}
	inst.IsSetup = isSetup != 0
	return inst, nil
}

func noneAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nz(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
