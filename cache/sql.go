package cache

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // Postgres driver
	"golang.org/x/xerrors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQL is a Cache backed by a single table in SQLite or Postgres.
type SQL struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func OpenSQL(driver, dsn string) (*SQL, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, xerrors.Errorf("unsupported cache driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to ping database: %w", err)
	}

	s := &SQL{db: db, driver: driver, now: time.Now}
	if err = s.migrate(); err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQL) migrate() error {
	blob := "BLOB"
	if s.driver == DriverPostgres {
		blob = "BYTEA"
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS soter_cache (
		cache_key TEXT PRIMARY KEY,
		value ` + blob + ` NOT NULL,
		expires_at BIGINT NOT NULL
	)`)
	return err
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) Contains(key string) (bool, error) {
	var n int
	err := s.db.QueryRow(s.rebind(`SELECT COUNT(*) FROM soter_cache WHERE cache_key = ? AND expires_at > ?`),
		key, s.now().Unix()).Scan(&n)
	if err != nil {
		return false, xerrors.Errorf("cache query error: %w", err)
	}
	return n > 0, nil
}

func (s *SQL) Fetch(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(s.rebind(`SELECT value FROM soter_cache WHERE cache_key = ? AND expires_at > ?`),
		key, s.now().Unix()).Scan(&value)
	if xerrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, xerrors.Errorf("cache query error: %w", err)
	}
	return value, nil
}

func (s *SQL) Save(key string, value []byte, ttl time.Duration) error {
	_, err := s.db.Exec(s.rebind(`INSERT INTO soter_cache (cache_key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`),
		key, value, s.now().Add(ttl).Unix())
	if err != nil {
		return xerrors.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
