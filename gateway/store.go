package gateway

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

// ContractStore is the gateway's local, best-effort record of outgoing
// contracts it is currently servicing. Nothing in the payment state
// machine depends on it succeeding — a write failure here is logged, never
// propagated, per the design note that this bookkeeping is advisory.
type ContractStore struct {
	db *sql.DB
}

// OpenContractStore opens (creating the schema if needed) either a
// Postgres or an embedded sqlite-backed store, selected by driverName
// ("pgx" or "sqlite").
func OpenContractStore(driverName, dsn string) (*ContractStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open contract store: %w", err)
	}

	if driverName == "pgx" {
		if err := migrateSchema(db, dsn); err != nil {
			db.Close()
			return nil, err
		}
	} else if _, err := db.Exec(contractTableDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create contract table: %w", err)
	}

	return &ContractStore{db: db}, nil
}

const contractTableDDL = `
CREATE TABLE IF NOT EXISTS outgoing_contracts (
	contract_id   BLOB PRIMARY KEY,
	invoice       TEXT NOT NULL,
	expected_amt  INTEGER NOT NULL,
	state         TEXT NOT NULL
)`

// migrateSchema runs the Postgres migration set via golang-migrate, the
// same tool the rest of the pack relies on for schema evolution.
func migrateSchema(db *sql.DB, dsn string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://gateway/migrations", "postgres", driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Save best-effort persists an outgoing contract's current state. Errors
// are returned to the caller only so it can log them; the payment state
// machine never aborts because of a storage failure here.
func (s *ContractStore) Save(c *OutgoingContract, state string) error {
	_, err := s.db.Exec(
		`INSERT INTO outgoing_contracts (contract_id, invoice, expected_amt, state)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (contract_id) DO UPDATE SET state = excluded.state`,
		c.ID[:], c.Invoice, c.ExpectedAmount, state,
	)
	return err
}

// Close releases the underlying connection pool.
func (s *ContractStore) Close() error {
	return s.db.Close()
}
