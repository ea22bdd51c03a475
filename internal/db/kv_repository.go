package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tOgg1/approvalctl/internal/models"
)

var ErrKVNotFound = errors.New("kv entry not found")

const upsertKV = `
	INSERT INTO kv (id, namespace, key, value, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

const selectKV = `SELECT id, namespace, key, value, created_at, updated_at FROM kv`

// KVRepository backs the session store: one namespace per concern, one row
// per key.
type KVRepository struct {
	db *DB
}

func NewKVRepository(db *DB) *KVRepository {
	return &KVRepository{db: db}
}

// Set writes one key, replacing any previous value.
func (r *KVRepository) Set(ctx context.Context, namespace, key, value string) error {
	return r.SetMany(ctx, namespace, map[string]string{key: value})
}

// SetMany writes every key in one transaction. Either all keys change or
// none do, so a half-written session is never observed.
func (r *KVRepository) SetMany(ctx context.Context, namespace string, values map[string]string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	namespace = strings.TrimSpace(namespace)

	entries := make([]models.KV, 0, len(values))
	for _, key := range slices.Sorted(maps.Keys(values)) {
		entry := models.KV{Namespace: namespace, Key: strings.TrimSpace(key), Value: values[key]}
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("kv %s/%s: %w", namespace, key, err)
		}
		entries = append(entries, entry)
	}

	return r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, upsertKV, uuid.NewString(), e.Namespace, e.Key, e.Value, stamp, stamp); err != nil {
				return fmt.Errorf("write kv %s/%s: %w", e.Namespace, e.Key, err)
			}
		}
		return nil
	})
}

func (r *KVRepository) Get(ctx context.Context, namespace, key string) (*models.KV, error) {
	row := r.db.QueryRowContext(ctx, selectKV+` WHERE namespace = ? AND key = ?`,
		strings.TrimSpace(namespace), strings.TrimSpace(key))
	entry, err := readKV(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKVNotFound
	}
	return entry, err
}

// List returns a namespace ordered by key. An unknown namespace is empty.
func (r *KVRepository) List(ctx context.Context, namespace string) ([]*models.KV, error) {
	rows, err := r.db.QueryContext(ctx, selectKV+` WHERE namespace = ? ORDER BY key`, strings.TrimSpace(namespace))
	if err != nil {
		return nil, fmt.Errorf("list kv %s: %w", namespace, err)
	}
	defer rows.Close()

	var out []*models.KV
	for rows.Next() {
		entry, err := readKV(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteNamespace removes a namespace and reports how many keys it held.
func (r *KVRepository) DeleteNamespace(ctx context.Context, namespace string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ?`, strings.TrimSpace(namespace))
	if err != nil {
		return 0, fmt.Errorf("clear kv %s: %w", namespace, err)
	}
	return res.RowsAffected()
}

func readKV(row interface{ Scan(...any) error }) (*models.KV, error) {
	var (
		entry            models.KV
		created, updated string
	)
	if err := row.Scan(&entry.ID, &entry.Namespace, &entry.Key, &entry.Value, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan kv: %w", err)
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339, created)
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &entry, nil
}
