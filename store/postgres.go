package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gofalre.io/inventory/driver"
	"gofalre.io/inventory/models"
	"gofalre.io/inventory/models/enum"
)

const (
	getRecordSQL = `
		SELECT product_id, quantity_on_hand, version, created_at, updated_at
		FROM stock_records
		WHERE product_id = $1`

	writeRecordSQL = `
		UPDATE stock_records
		SET quantity_on_hand = $1, version = version + 1, updated_at = now()
		WHERE product_id = $2 AND version = $3`

	insertMovementSQL = `
		INSERT INTO stock_movements (product_id, quantity, type, reference_type, reference_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, 0))`

	listMovementsSQL = `
		SELECT id, product_id, quantity, type, COALESCE(reference_type, ''), COALESCE(reference_id, 0), created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps stock records in a stock_records table with a version
// column advanced on every write.
type PostgresStore struct {
	conn   driver.PostgresPool
	tm     *driver.TransactionManager
	logger *zap.Logger
}

func NewPostgresStore(conn driver.PostgresPool, tm *driver.TransactionManager, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		conn:   conn,
		tm:     tm,
		logger: logger,
	}
}

func (s *PostgresStore) GetRecord(ctx context.Context, productID string) (*models.StockRecord, error) {
	var rec models.StockRecord
	err := s.conn.QueryRow(ctx, getRecordSQL, productID).
		Scan(&rec.ProductID, &rec.QuantityOnHand, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("failed to get stock record", zap.String("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ConditionalWrite(ctx context.Context, op WriteOp) error {
	err := s.tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return applyWriteOp(ctx, tx, op, ErrVersionConflict)
	})
	if driver.IsSerializationFailure(err) {
		return ErrVersionConflict
	}
	return err
}

func (s *PostgresStore) RunTransaction(ctx context.Context, ops []WriteOp) error {
	err := s.tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		for _, op := range ops {
			if err := applyWriteOp(ctx, tx, op, ErrTxAborted); err != nil {
				return err
			}
		}
		return nil
	})
	if driver.IsSerializationFailure(err) {
		return ErrTxAborted
	}
	return err
}

// applyWriteOp issues the versioned update and, when requested, the journal
// insert. A zero-row update means the record changed since it was read (or no
// longer exists) and surfaces as conflictErr.
func applyWriteOp(ctx context.Context, tx pgx.Tx, op WriteOp, conflictErr error) error {
	tag, err := tx.Exec(ctx, writeRecordSQL, op.NewQuantity, op.ProductID, op.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("write stock record %s: %w", op.ProductID, err)
	}
	if tag.RowsAffected() == 0 {
		return conflictErr
	}

	if op.Movement == nil {
		return nil
	}
	m := op.Movement
	if _, err = tx.Exec(ctx, insertMovementSQL, m.ProductID, m.Quantity, string(m.Type), string(m.ReferenceType), m.ReferenceID); err != nil {
		return fmt.Errorf("journal stock movement for %s: %w", m.ProductID, err)
	}
	return nil
}

func (s *PostgresStore) ListStockMovements(ctx context.Context, productID string, limit, offset uint64) ([]*models.StockMovement, error) {
	rows, err := s.conn.Query(ctx, listMovementsSQL, productID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list stock movements", zap.String("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var movements []*models.StockMovement
	for rows.Next() {
		var m models.StockMovement
		var movementType, referenceType string
		if err = rows.Scan(&m.ID, &m.ProductID, &m.Quantity, &movementType, &referenceType, &m.ReferenceID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		m.Type = enum.StockMovementType(movementType)
		m.ReferenceType = enum.StockMovementReferenceType(referenceType)
		movements = append(movements, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return movements, nil
}
