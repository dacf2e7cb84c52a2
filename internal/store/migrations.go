package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	for _, m := range migrationsFor(s.driver) {
		if _, err := s.db.Exec(m); err != nil {
			if strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// migrationsFor returns the schema statements for driver. Key columns must
// compare byte for byte: keys differing only in case are distinct keys.
func migrationsFor(driver string) []string {
	switch driver {
	case DriverMySQL:
		return []string{
			// The default collation is case-insensitive.
			`CREATE TABLE IF NOT EXISTS access_keys (
				id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				access_key VARCHAR(32) CHARACTER SET ascii COLLATE ascii_bin NOT NULL UNIQUE,
				valid_until BIGINT NOT NULL
			)`,
			// MySQL has no CREATE INDEX IF NOT EXISTS; migrate skips duplicates.
			`CREATE INDEX idx_access_keys_valid_until ON access_keys(valid_until)`,
		}
	case DriverPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS access_keys (
				id BIGSERIAL PRIMARY KEY,
				access_key VARCHAR(32) NOT NULL UNIQUE,
				valid_until BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_access_keys_valid_until ON access_keys(valid_until)`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS access_keys (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				access_key TEXT UNIQUE NOT NULL,
				valid_until INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_access_keys_valid_until ON access_keys(valid_until)`,
		}
	}
}
