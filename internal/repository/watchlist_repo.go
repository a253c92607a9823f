package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WatchlistRepository define el contrato de persistencia para la lista de
// streamers seguidos por cada usuario.
type WatchlistRepository interface {
	List(ctx context.Context, username string) ([]string, error)
	// Add inserta un streamer y reporta si la fila era nueva. Un duplicado
	// no es un error: la restricción UNIQUE lo absorbe.
	Add(ctx context.Context, username, streamerName string) (bool, error)
	// Remove es idempotente: borrar un streamer ausente no falla.
	Remove(ctx context.Context, username, streamerName string) error
}

// PgWatchlistRepository implementa WatchlistRepository usando pgxpool.
type PgWatchlistRepository struct {
	pool *pgxpool.Pool
}

func NewPgWatchlistRepository(pool *pgxpool.Pool) *PgWatchlistRepository {
	return &PgWatchlistRepository{pool: pool}
}

func (r *PgWatchlistRepository) List(ctx context.Context, username string) ([]string, error) {
	const query = `
		SELECT streamer_name
		FROM streamers
		WHERE username = $1
	`
	rows, err := r.pool.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PgWatchlistRepository) Add(ctx context.Context, username, streamerName string) (bool, error) {
	const query = `
		INSERT INTO streamers (username, streamer_name, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (username, streamer_name) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, username, streamerName, time.Now().UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgWatchlistRepository) Remove(ctx context.Context, username, streamerName string) error {
	const query = `
		DELETE FROM streamers
		WHERE username = $1 AND streamer_name = $2
	`
	_, err := r.pool.Exec(ctx, query, username, streamerName)
	return err
}
