package pgdatabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type PgDatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSlMode  string
}

func (c *PgDatabaseConfig) validate() error {
	if c.Host == "" {
		return errors.New("pg database config Host cannot be empty")
	}
	if c.DBName == "" {
		return errors.New("pg database config DBName cannot be empty")
	}

	return nil
}

func (c *PgDatabaseConfig) connString() string {
	sslMode := c.SSlMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s ",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
}

type PgDatabase struct {
	db *sql.DB
}

func (d *PgDatabase) GetDB() (*sql.DB, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("pg database uninitialized")
	}

	return d.db, nil
}

func (d *PgDatabase) Ping(ctx context.Context) error {
	db, err := d.GetDB()
	if err != nil {
		return err
	}

	return db.PingContext(ctx)
}

func (d *PgDatabase) Close() error {
	if d == nil || d.db == nil {
		return nil
	}

	return d.db.Close()
}

func New(config PgDatabaseConfig) (*PgDatabase, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", config.connString())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PgDatabase{
		db: db,
	}, nil
}
