package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/hetarolabs/samantha/session"
)

// Store adapts a SQL driver to the session persistence contract.
type Store struct {
	driver Driver
}

var _ session.Backend = (*Store)(nil)

// New creates a store over the given driver and runs migrations.
func New(ctx context.Context, driver Driver) (*Store, error) {
	if err := driver.Migrate(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return &Store{driver: driver}, nil
}

func (s *Store) Get(ctx context.Context, userID string) (*session.Record, error) {
	userSession, err := s.driver.GetUserSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userSession == nil {
		return nil, nil
	}

	record := &session.Record{}
	if err := json.Unmarshal([]byte(userSession.Payload), record); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session record")
	}
	return record, nil
}

func (s *Store) Set(ctx context.Context, userID string, record *session.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session record")
	}
	return s.driver.UpsertUserSession(ctx, &UserSession{
		UserID:    userID,
		Payload:   string(payload),
		UpdatedTs: time.Now().Unix(),
	})
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	return s.driver.DeleteUserSession(ctx, userID)
}

func (s *Store) Close() error {
	return s.driver.Close()
}
