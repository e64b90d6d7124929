package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements the dedupe store and the delivery repository on one pool.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{db: db} }
