package postgres

import (
	"context"
	"fmt"
	"time"

	"redirector/internal/domain"
	"redirector/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// clickRepository is the PostgreSQL implementation of the click store.
type clickRepository struct {
	db *pgxpool.Pool
}

// NewClickRepository creates a new PostgreSQL click repository.
func NewClickRepository(db *pgxpool.Pool) repository.ClickRepository {
	return &clickRepository{db: db}
}

// EnsureSchema creates the clicks table and supporting indexes.
// Every statement is IF NOT EXISTS, so this is safe to run on each startup.
func (r *clickRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS clicks (
			id          BIGSERIAL PRIMARY KEY,
			clicked_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			slug        TEXT NOT NULL,
			destination TEXT NOT NULL,
			client_ip   TEXT NOT NULL DEFAULT '',
			user_agent  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_clicked_at ON clicks (clicked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_slug ON clicks (slug)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure click schema: %w", err)
		}
	}

	return nil
}

// Create appends a click event. The database assigns id and clicked_at;
// both are scanned back into the event.
func (r *clickRepository) Create(ctx context.Context, click *domain.ClickEvent) error {
	query := `
		INSERT INTO clicks (slug, destination, client_ip, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING id, clicked_at
	`

	err := r.db.QueryRow(
		ctx,
		query,
		click.Slug,
		click.Destination,
		click.ClientIP,
		click.UserAgent,
	).Scan(&click.ID, &click.ClickedAt)

	if err != nil {
		return fmt.Errorf("failed to create click event: %w", err)
	}

	return nil
}

// Recent returns up to limit events ordered by insertion order descending.
// Ordering is by id, not clicked_at: insertion order is authoritative even
// when timestamps skew.
func (r *clickRepository) Recent(ctx context.Context, limit int) ([]*domain.ClickEvent, error) {
	query := `
		SELECT id, clicked_at, slug, destination, client_ip, user_agent
		FROM clicks
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent clicks: %w", err)
	}
	defer rows.Close()

	return scanClicks(rows)
}

// ByDay returns all events for the given UTC calendar day in insertion
// order ascending.
func (r *clickRepository) ByDay(ctx context.Context, day time.Time) ([]*domain.ClickEvent, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	query := `
		SELECT id, clicked_at, slug, destination, client_ip, user_agent
		FROM clicks
		WHERE clicked_at >= $1 AND clicked_at < $2
		ORDER BY id ASC
	`

	rows, err := r.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get clicks for day: %w", err)
	}
	defer rows.Close()

	return scanClicks(rows)
}

// TotalCount returns the total number of recorded click events.
func (r *clickRepository) TotalCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clicks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get click count: %w", err)
	}

	return count, nil
}

// scanClicks collects query results into a slice of events.
func scanClicks(rows pgx.Rows) ([]*domain.ClickEvent, error) {
	var clicks []*domain.ClickEvent
	for rows.Next() {
		click := &domain.ClickEvent{}
		err := rows.Scan(
			&click.ID,
			&click.ClickedAt,
			&click.Slug,
			&click.Destination,
			&click.ClientIP,
			&click.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}

// InitDB initializes the database connection pool.
// Called once at application startup; the pool bounds concurrent
// connections so a slow store cannot exhaust resources.
func InitDB(ctx context.Context, dsn string, maxConns, minConns int, maxLifetime time.Duration) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = int32(maxConns)
	config.MinConns = int32(minConns)
	config.MaxConnLifetime = maxLifetime
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
