package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hetarolabs/samantha/store"
)

func (d *DB) GetUserSession(ctx context.Context, userID string) (*store.UserSession, error) {
	query := `SELECT user_id, payload, updated_ts FROM user_session WHERE user_id = $1`

	result := &store.UserSession{}
	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&result.UserID,
		&result.Payload,
		&result.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get user_session")
	}

	return result, nil
}

func (d *DB) UpsertUserSession(ctx context.Context, upsert *store.UserSession) error {
	stmt := `INSERT INTO user_session (user_id, payload, updated_ts)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_ts = EXCLUDED.updated_ts`

	if _, err := d.db.ExecContext(ctx, stmt, upsert.UserID, upsert.Payload, upsert.UpdatedTs); err != nil {
		return errors.Wrap(err, "failed to upsert user_session")
	}
	return nil
}

func (d *DB) DeleteUserSession(ctx context.Context, userID string) error {
	stmt := `DELETE FROM user_session WHERE user_id = $1`

	if _, err := d.db.ExecContext(ctx, stmt, userID); err != nil {
		return errors.Wrap(err, "failed to delete user_session")
	}
	return nil
}
