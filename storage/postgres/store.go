package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/lireddit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Store is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open builds a pool from cfg and verifies connectivity.
func Open(ctx context.Context, cfg lireddit.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports the round-trip time of a trivial query.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return 0, fmt.Errorf("postgres: ping: %w", err)
	}
	return time.Since(start), nil
}

// Migrate applies schema.sql.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

/* ---- users ---- */

const userColumns = `"id", "username", "email", "password", "createdAt", "updatedAt"`

func scanUser(row pgx.Row) (lireddit.UserRecord, error) {
	var (
		rec lireddit.UserRecord
		id  int32
	)
	err := row.Scan(&id, &rec.Username, &rec.Email, &rec.PasswordHash, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return lireddit.UserRecord{}, err
	}
	rec.ID = int64(id)
	return rec, nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (lireddit.UserRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM "user" WHERE `+where+` = $1`, arg)
	rec, err := scanUser(row)
	if err != nil {
		return lireddit.UserRecord{}, mapError("get user", err)
	}
	return rec, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (lireddit.UserRecord, error) {
	return s.getUser(ctx, `"id"`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (lireddit.UserRecord, error) {
	return s.getUser(ctx, `"username"`, username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (lireddit.UserRecord, error) {
	return s.getUser(ctx, `"email"`, email)
}

func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (lireddit.UserRecord, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO "user" ("username", "email", "password") VALUES ($1, $2, $3) RETURNING `+userColumns,
		username, email, passwordHash)
	rec, err := scanUser(row)
	if err != nil {
		return lireddit.UserRecord{}, mapError("create user", err)
	}
	return rec, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE "user" SET "password" = $2, "updatedAt" = now() WHERE "id" = $1`, id, passwordHash)
	if err != nil {
		return mapError("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update password: %w", lireddit.ErrNotFound)
	}
	return nil
}

/* ---- posts ---- */

const postColumns = `"id", "title", "text", "points", "authorId", "createdAt", "updatedAt"`

func scanPost(row pgx.Row) (lireddit.Post, error) {
	var (
		p        lireddit.Post
		id       int32
		authorID *int32
	)
	if err := row.Scan(&id, &p.Title, &p.Text, &p.Points, &authorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return lireddit.Post{}, err
	}
	p.ID = int64(id)
	if authorID != nil {
		p.AuthorID = int64(*authorID)
	}
	return p, nil
}

// ListPosts returns posts newest first.
func (s *Store) ListPosts(ctx context.Context) ([]lireddit.Post, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM "post" ORDER BY "createdAt" DESC, "id" DESC`)
	if err != nil {
		return nil, mapError("list posts", err)
	}
	posts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lireddit.Post, error) {
		return scanPost(row)
	})
	if err != nil {
		return nil, mapError("list posts", err)
	}
	return posts, nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (lireddit.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM "post" WHERE "id" = $1`, id))
	if err != nil {
		return lireddit.Post{}, mapError("get post", err)
	}
	return p, nil
}

// CreatePost stores a post. An authorID of zero stores no author.
func (s *Store) CreatePost(ctx context.Context, title, text string, authorID int64) (lireddit.Post, error) {
	var author *int64
	if authorID != 0 {
		author = &authorID
	}
	p, err := scanPost(s.pool.QueryRow(ctx,
		`INSERT INTO "post" ("title", "text", "authorId") VALUES ($1, $2, $3) RETURNING `+postColumns,
		title, text, author))
	if err != nil {
		return lireddit.Post{}, mapError("create post", err)
	}
	return p, nil
}

func (s *Store) UpdatePostTitle(ctx context.Context, id int64, title string) (lireddit.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx,
		`UPDATE "post" SET "title" = $2, "updatedAt" = now() WHERE "id" = $1 RETURNING `+postColumns,
		id, title))
	if err != nil {
		return lireddit.Post{}, mapError("update post", err)
	}
	return p, nil
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM "post" WHERE "id" = $1`, id)
	if err != nil {
		return mapError("delete post", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete post: %w", lireddit.ErrNotFound)
	}
	return nil
}

func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: %s: %w", op, lireddit.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("postgres: %s: %w: %s", op, lireddit.ErrDuplicate, pgErr.ConstraintName)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

var (
	_ lireddit.UserStore = (*Store)(nil)
	_ lireddit.PostStore = (*Store)(nil)
)
