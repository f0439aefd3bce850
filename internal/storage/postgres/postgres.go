// Package postgres implements storage.Adapter durably on PostgreSQL,
// following the teacher repo's storage.PostgresStore shape: a pgxpool.Pool
// wrapped in context-first methods using parameterized queries and
// ON CONFLICT upserts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ocash-labs/sdk-core/internal/storage"
	"github.com/ocash-labs/sdk-core/pkg/types"
)

// Config holds database connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	// MaxOperationRetention bounds the operation log; zero means unbounded.
	MaxOperationRetention int
}

// DefaultConfig returns sane local-development defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "ocash",
		Password: "",
		Database: "ocash",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// Store implements storage.Adapter on PostgreSQL.
type Store struct {
	pool     *pgxpool.Pool
	cfg      *Config
	walletID string
}

var _ storage.Adapter = (*Store)(nil)

// Connect opens the connection pool but does not run Init; callers still
// call Init to set the wallet id, mirroring the memory backend.
func Connect(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage/postgres: ping: %w", err)
	}
	return &Store{pool: pool, cfg: cfg}, nil
}

// Schema is the DDL Connect's caller is expected to have applied (via a
// migration tool); kept here as the single source of truth for column
// shapes the Scan calls below depend on.
const Schema = `
CREATE TABLE IF NOT EXISTS utxos (
	chain_id    BIGINT NOT NULL,
	asset_id    NUMERIC NOT NULL,
	amount      NUMERIC NOT NULL,
	commitment  BYTEA NOT NULL,
	nullifier   BYTEA NOT NULL,
	mk_index    BIGINT NOT NULL DEFAULT 0,
	is_frozen   BOOLEAN NOT NULL DEFAULT FALSE,
	is_spent    BOOLEAN NOT NULL DEFAULT FALSE,
	memo        BYTEA,
	created_at  BIGINT,
	PRIMARY KEY (chain_id, commitment)
);

CREATE TABLE IF NOT EXISTS sync_cursors (
	chain_id       BIGINT PRIMARY KEY,
	memo_cursor    BIGINT NOT NULL DEFAULT 0,
	nullifier_cursor BIGINT NOT NULL DEFAULT 0,
	merkle_cursor  BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS operations (
	id               TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	status           TEXT NOT NULL,
	chain_id         BIGINT NOT NULL,
	token_id         TEXT NOT NULL,
	tx_hash          BYTEA,
	relayer_tx_hash  TEXT,
	request_url      TEXT,
	error            TEXT,
	created_at       BIGINT NOT NULL,
	updated_at       BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS merkle_leaves (
	chain_id BIGINT NOT NULL,
	idx      BIGINT NOT NULL,
	leaf     BYTEA NOT NULL,
	PRIMARY KEY (chain_id, idx)
);
`

func (s *Store) Init(_ context.Context, walletID string) error {
	s.walletID = walletID
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) UpsertUTXOs(ctx context.Context, rows []types.UtxoRecord) error {
	const query = `
		INSERT INTO utxos (chain_id, asset_id, amount, commitment, nullifier,
			mk_index, is_frozen, is_spent, memo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chain_id, commitment) DO UPDATE SET
			asset_id = $2, amount = $3, nullifier = $5, mk_index = $6,
			is_frozen = $7, is_spent = $8, memo = $9, created_at = $10
	`
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query,
			row.ChainID, row.AssetID.String(), row.Amount.String(),
			row.Commitment[:], row.Nullifier[:], row.MkIndex,
			row.IsFrozen, row.IsSpent, row.Memo, row.CreatedAt,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("storage/postgres: upsert utxo: %w", err)
		}
	}
	return nil
}

func (s *Store) ListUTXOs(ctx context.Context, q storage.UTXOQuery) ([]types.UtxoRecord, error) {
	query := `SELECT chain_id, asset_id, amount, commitment, nullifier, mk_index,
		is_frozen, is_spent, memo, created_at FROM utxos WHERE TRUE`
	var args []any
	if q.ChainID != nil {
		args = append(args, *q.ChainID)
		query += fmt.Sprintf(" AND chain_id = $%d", len(args))
	}
	if q.AssetID != nil {
		args = append(args, *q.AssetID)
		query += fmt.Sprintf(" AND asset_id = $%d", len(args))
	}
	if q.IsSpent != nil {
		args = append(args, *q.IsSpent)
		query += fmt.Sprintf(" AND is_spent = $%d", len(args))
	}
	if q.IsFrozen != nil {
		args = append(args, *q.IsFrozen)
		query += fmt.Sprintf(" AND is_frozen = $%d", len(args))
	}
	query += " ORDER BY chain_id, commitment"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: list utxos: %w", err)
	}
	defer rows.Close()

	var out []types.UtxoRecord
	for rows.Next() {
		var r types.UtxoRecord
		var assetID, amount string
		var commitment, nullifier, memo []byte
		if err := rows.Scan(&r.ChainID, &assetID, &amount, &commitment, &nullifier,
			&r.MkIndex, &r.IsFrozen, &r.IsSpent, &memo, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.AssetID, _ = new(big.Int).SetString(assetID, 10)
		r.Amount, _ = new(big.Int).SetString(amount, 10)
		copy(r.Commitment[:], commitment)
		copy(r.Nullifier[:], nullifier)
		r.Memo = memo
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) MarkSpent(ctx context.Context, chainID uint64, nullifiers []types.Hash) (int, error) {
	if len(nullifiers) == 0 {
		return 0, nil
	}
	bs := make([][]byte, len(nullifiers))
	for i, n := range nullifiers {
		bs[i] = n[:]
	}
	const query = `UPDATE utxos SET is_spent = TRUE
		WHERE chain_id = $1 AND nullifier = ANY($2) AND is_spent = FALSE`
	tag, err := s.pool.Exec(ctx, query, chainID, bs)
	if err != nil {
		return 0, fmt.Errorf("storage/postgres: mark spent: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListEntryMemos and ListEntryNullifiers mirror the entry service's streams
// locally; this SDK does not persist them in postgres (they are refetched
// from entryclient on demand), so these return empty results rather than
// failing, matching the optional entry-mirror wording in the adapter spec.
func (s *Store) ListEntryMemos(_ context.Context, _ uint64, _ storage.EntryMemoQuery) ([]types.EntryMemo, error) {
	return nil, nil
}

func (s *Store) ListEntryNullifiers(_ context.Context, _ uint64, _ storage.EntryNullifierQuery) ([]types.EntryNullifier, error) {
	return nil, nil
}

func (s *Store) GetSyncCursor(ctx context.Context, chainID uint64) (types.SyncCursor, error) {
	const query = `SELECT memo_cursor, nullifier_cursor, merkle_cursor
		FROM sync_cursors WHERE chain_id = $1`
	var cur types.SyncCursor
	err := s.pool.QueryRow(ctx, query, chainID).Scan(&cur.Memo, &cur.Nullifier, &cur.Merkle)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.SyncCursor{}, nil
	}
	if err != nil {
		return types.SyncCursor{}, fmt.Errorf("storage/postgres: get cursor: %w", err)
	}
	return cur, nil
}

func (s *Store) SetSyncCursor(ctx context.Context, chainID uint64, cur types.SyncCursor) error {
	const query = `
		INSERT INTO sync_cursors (chain_id, memo_cursor, nullifier_cursor, merkle_cursor)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain_id) DO UPDATE SET
			memo_cursor = $2, nullifier_cursor = $3, merkle_cursor = $4
	`
	_, err := s.pool.Exec(ctx, query, chainID, cur.Memo, cur.Nullifier, cur.Merkle)
	if err != nil {
		return fmt.Errorf("storage/postgres: set cursor: %w", err)
	}
	return nil
}

func (s *Store) CreateOperation(ctx context.Context, op types.StoredOperation) (types.StoredOperation, error) {
	const query = `
		INSERT INTO operations (id, type, status, chain_id, token_id, tx_hash,
			relayer_tx_hash, request_url, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	var txHash []byte
	if op.TxHash != nil {
		txHash = op.TxHash[:]
	}
	_, err := s.pool.Exec(ctx, query, op.ID, op.Type, op.Status, op.ChainID, op.TokenID,
		txHash, op.RelayerTxHash, op.RequestURL, op.Error, op.CreatedAt, op.UpdatedAt)
	if err != nil {
		return types.StoredOperation{}, fmt.Errorf("storage/postgres: create operation: %w", err)
	}
	if err := s.pruneOperations(ctx); err != nil {
		return types.StoredOperation{}, err
	}
	return op, nil
}

func (s *Store) pruneOperations(ctx context.Context) error {
	if s.cfg == nil || s.cfg.MaxOperationRetention <= 0 {
		return nil
	}
	const query = `
		DELETE FROM operations WHERE id IN (
			SELECT id FROM operations ORDER BY created_at DESC OFFSET $1
		)
	`
	_, err := s.pool.Exec(ctx, query, s.cfg.MaxOperationRetention)
	return err
}

func (s *Store) UpdateOperation(ctx context.Context, id string, patch storage.OperationPatch) (types.StoredOperation, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.TxHash != nil {
		add("tx_hash", patch.TxHash[:])
	}
	if patch.RelayerTxHash != nil {
		add("relayer_tx_hash", *patch.RelayerTxHash)
	}
	if patch.Error != nil {
		add("error", *patch.Error)
	}
	if patch.UpdatedAt != 0 {
		add("updated_at", patch.UpdatedAt)
	}
	if len(sets) == 0 {
		return s.getOperation(ctx, id)
	}
	args = append(args, id)
	query := "UPDATE operations SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += fmt.Sprintf(" WHERE id = $%d", len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return types.StoredOperation{}, fmt.Errorf("storage/postgres: update operation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.StoredOperation{}, storage.ErrNotFound
	}
	return s.getOperation(ctx, id)
}

func (s *Store) getOperation(ctx context.Context, id string) (types.StoredOperation, error) {
	const query = `SELECT id, type, status, chain_id, token_id, tx_hash,
		relayer_tx_hash, request_url, error, created_at, updated_at
		FROM operations WHERE id = $1`
	var op types.StoredOperation
	var txHash []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&op.ID, &op.Type, &op.Status, &op.ChainID,
		&op.TokenID, &txHash, &op.RelayerTxHash, &op.RequestURL, &op.Error, &op.CreatedAt, &op.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.StoredOperation{}, storage.ErrNotFound
	}
	if err != nil {
		return types.StoredOperation{}, err
	}
	if len(txHash) == types.HashSize {
		var h types.Hash
		copy(h[:], txHash)
		op.TxHash = &h
	}
	return op, nil
}

func (s *Store) ListOperations(ctx context.Context, q storage.OperationQuery) ([]types.StoredOperation, error) {
	query := `SELECT id, type, status, chain_id, token_id, tx_hash,
		relayer_tx_hash, request_url, error, created_at, updated_at FROM operations WHERE TRUE`
	var args []any
	if q.ChainID != nil {
		args = append(args, *q.ChainID)
		query += fmt.Sprintf(" AND chain_id = $%d", len(args))
	}
	if q.Type != nil {
		args = append(args, *q.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if q.Status != nil {
		args = append(args, *q.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if q.Ascending {
		query += " ORDER BY created_at ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: list operations: %w", err)
	}
	defer rows.Close()

	var out []types.StoredOperation
	for rows.Next() {
		var op types.StoredOperation
		var txHash []byte
		if err := rows.Scan(&op.ID, &op.Type, &op.Status, &op.ChainID, &op.TokenID,
			&txHash, &op.RelayerTxHash, &op.RequestURL, &op.Error, &op.CreatedAt, &op.UpdatedAt); err != nil {
			return nil, err
		}
		if len(txHash) == types.HashSize {
			var h types.Hash
			copy(h[:], txHash)
			op.TxHash = &h
		}
		out = append(out, op)
	}
	return out, nil
}

func (s *Store) AppendMerkleLeaves(ctx context.Context, chainID uint64, leaves []types.Hash) error {
	const countQuery = `SELECT COUNT(*) FROM merkle_leaves WHERE chain_id = $1`
	var base int64
	if err := s.pool.QueryRow(ctx, countQuery, chainID).Scan(&base); err != nil {
		return fmt.Errorf("storage/postgres: append leaves count: %w", err)
	}
	batch := &pgx.Batch{}
	const query = `INSERT INTO merkle_leaves (chain_id, idx, leaf) VALUES ($1, $2, $3)
		ON CONFLICT (chain_id, idx) DO NOTHING`
	for i, leaf := range leaves {
		batch.Queue(query, chainID, base+int64(i), leaf[:])
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range leaves {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("storage/postgres: append leaf: %w", err)
		}
	}
	return nil
}

func (s *Store) GetMerkleLeaves(ctx context.Context, chainID uint64, fromIndex, toIndex uint64) ([]types.Hash, error) {
	const query = `SELECT leaf FROM merkle_leaves WHERE chain_id = $1 AND idx >= $2 AND idx < $3 ORDER BY idx ASC`
	rows, err := s.pool.Query(ctx, query, chainID, fromIndex, toIndex)
	if err != nil {
		return nil, fmt.Errorf("storage/postgres: get leaves: %w", err)
	}
	defer rows.Close()
	var out []types.Hash
	for rows.Next() {
		var leaf []byte
		if err := rows.Scan(&leaf); err != nil {
			return nil, err
		}
		var h types.Hash
		copy(h[:], leaf)
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) ClearMerkleLeaves(ctx context.Context, chainID uint64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM merkle_leaves WHERE chain_id = $1`, chainID)
	if err != nil {
		return fmt.Errorf("storage/postgres: clear leaves: %w", err)
	}
	return nil
}
