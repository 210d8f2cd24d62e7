package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/overmark/roomaccess/internal/domain"
)

// RoomCodeRepository is the only component allowed to touch room_qr_codes.
// Records are inserted active and later flipped inactive; they are never
// deleted, so the table doubles as the audit trail.
type RoomCodeRepository interface {
	InsertActive(ctx context.Context, roomNumber, code, residentName, createdBy string) (*domain.RoomCode, error)
	Rotate(ctx context.Context, roomNumber, newCode, createdBy string) (*domain.RoomCode, error)
	FindActiveByCode(ctx context.Context, code string) (*domain.RoomCode, error)
	FindActiveByRoom(ctx context.Context, roomNumber string) (*domain.RoomCode, error)
	ListActive(ctx context.Context) ([]domain.RoomCode, error)
	ListHistoryByRoom(ctx context.Context, roomNumber string) ([]domain.RoomCode, error)
}

type roomCodeRepository struct {
	pool *pgxpool.Pool
}

func NewRoomCodeRepository(pool *pgxpool.Pool) RoomCodeRepository {
	return &roomCodeRepository{pool: pool}
}

const codeCols = `id, room_number, code, is_active, resident_name, created_by, created_at, deactivated_at`

func scanCode(row pgx.Row) (*domain.RoomCode, error) {
	var rc domain.RoomCode
	err := row.Scan(
		&rc.ID, &rc.RoomNumber, &rc.Code, &rc.IsActive,
		&rc.ResidentName, &rc.CreatedBy, &rc.CreatedAt, &rc.DeactivatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *roomCodeRepository) InsertActive(ctx context.Context, roomNumber, code, residentName, createdBy string) (*domain.RoomCode, error) {
	const q = `
		INSERT INTO room_qr_codes (room_number, code, is_active, resident_name, created_by)
		VALUES ($1, $2, true, $3, $4)
		RETURNING ` + codeCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rc, err := scanCode(r.pool.QueryRow(ctx, q, roomNumber, code, residentName, createdBy))
	if err != nil {
		return nil, classifyUniqueViolation(err)
	}
	return rc, nil
}

// Rotate deactivates the room's current code and inserts its replacement in
// one transaction. No reader ever sees two active records for the room; the
// zero-active window is confined to the transaction itself.
func (r *roomCodeRepository) Rotate(ctx context.Context, roomNumber, newCode, createdBy string) (*domain.RoomCode, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback(ctx)

	const deactivate = `
		UPDATE room_qr_codes
		SET is_active = false, deactivated_at = now()
		WHERE room_number = $1 AND is_active`

	tag, err := tx.Exec(ctx, deactivate, roomNumber)
	if err != nil {
		return nil, fmt.Errorf("deactivate current code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNoActiveCode
	}

	const insert = `
		INSERT INTO room_qr_codes (room_number, code, is_active, resident_name, created_by)
		VALUES ($1, $2, true, '', $3)
		RETURNING ` + codeCols

	rc, err := scanCode(tx.QueryRow(ctx, insert, roomNumber, newCode, createdBy))
	if err != nil {
		return nil, classifyUniqueViolation(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit rotate: %w", err)
	}
	return rc, nil
}

func (r *roomCodeRepository) FindActiveByCode(ctx context.Context, code string) (*domain.RoomCode, error) {
	const q = `SELECT ` + codeCols + ` FROM room_qr_codes WHERE code = $1 AND is_active`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rc, err := scanCode(r.pool.QueryRow(ctx, q, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rc, err
}

func (r *roomCodeRepository) FindActiveByRoom(ctx context.Context, roomNumber string) (*domain.RoomCode, error) {
	const q = `SELECT ` + codeCols + ` FROM room_qr_codes WHERE room_number = $1 AND is_active`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rc, err := scanCode(r.pool.QueryRow(ctx, q, roomNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rc, err
}

func (r *roomCodeRepository) ListActive(ctx context.Context) ([]domain.RoomCode, error) {
	const q = `SELECT ` + codeCols + ` FROM room_qr_codes WHERE is_active ORDER BY room_number`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCodes(rows)
}

func (r *roomCodeRepository) ListHistoryByRoom(ctx context.Context, roomNumber string) ([]domain.RoomCode, error) {
	const q = `SELECT ` + codeCols + ` FROM room_qr_codes WHERE room_number = $1 ORDER BY created_at DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, roomNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectCodes(rows)
}

func collectCodes(rows pgx.Rows) ([]domain.RoomCode, error) {
	var codes []domain.RoomCode
	for rows.Next() {
		rc, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, *rc)
	}
	return codes, rows.Err()
}

// classifyUniqueViolation maps the two unique constraints on room_qr_codes to
// their domain errors: a reused code string is retryable with a fresh code,
// a second active row for a room is an invariant violation.
func classifyUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "room_qr_codes_code_key":
			return domain.ErrCodeCollision
		case "room_qr_codes_one_active":
			return domain.ErrDuplicateActiveCode
		}
	}
	return err
}
