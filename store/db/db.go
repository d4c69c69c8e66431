// Package db selects a concrete database driver from the runtime profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/hetarolabs/samantha/internal/profile"
	"github.com/hetarolabs/samantha/store"
	"github.com/hetarolabs/samantha/store/db/postgres"
	"github.com/hetarolabs/samantha/store/db/sqlite"
)

// NewDBDriver creates a db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
