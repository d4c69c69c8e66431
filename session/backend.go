package session

import "context"

// Backend is the persistence contract shared by the fast cache tier and the
// durable tier. Get returns (nil, nil) on a clean miss; any error is
// tolerated by the manager, which falls through to the next tier.
type Backend interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Set(ctx context.Context, userID string, record *Record) error
	Delete(ctx context.Context, userID string) error
}
