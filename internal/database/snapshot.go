package database

import (
	"context"
	"fmt"
	"os"
)

// SnapshotFile writes a consistent copy of a SQLite store to dest.
func (s *Store) SnapshotFile(ctx context.Context, dest string) error {
	if s.driver != DriverSQLite {
		return fmt.Errorf("file snapshots require %s, store uses %s", DriverSQLite, s.driver)
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO $1`, dest); err != nil {
		return fmt.Errorf("error writing snapshot: %w", err)
	}
	return nil
}
