package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/identity"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schema string

// ErrInvalidIdentifier is returned by New when a content table or column
// name is not a plain SQL identifier.
var ErrInvalidIdentifier = errors.New("postgres: invalid identifier")

// ErrUnknownContent is returned for a content type with no configured table.
var ErrUnknownContent = errors.New("postgres: unknown content type")

// OwnerColumn is one table column holding a user id.
type OwnerColumn struct {
	Table  string
	Column string
}

// ContentTables maps each content type to the owner columns rewritten when
// its ownership is transferred.
type ContentTables map[identity.ContentType][]OwnerColumn

// DefaultContentTables matches the tables created by Migrate.
func DefaultContentTables() ContentTables {
	return ContentTables{
		identity.ContentArticles:  {{Table: "articles", Column: "author_id"}},
		identity.ContentComments:  {{Table: "comments", Column: "author_id"}},
		identity.ContentBookmarks: {{Table: "bookmarks", Column: "user_id"}},
		identity.ContentRelationships: {
			{Table: "follows", Column: "follower_id"},
			{Table: "follows", Column: "following_id"},
		},
	}
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Store is a ProfileStore over a *sql.DB opened with the "pgx" driver.
type Store struct {
	db      *sql.DB
	content ContentTables
}

var _ identity.ProfileStore = (*Store)(nil)

// New wraps db. A nil content map selects DefaultContentTables.
func New(db *sql.DB, content ContentTables) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres: nil db")
	}
	if content == nil {
		content = DefaultContentTables()
	}
	for ct, cols := range content {
		for _, c := range cols {
			if !identifierRe.MatchString(c.Table) || !identifierRe.MatchString(c.Column) {
				return nil, fmt.Errorf("%w: %s %s.%s", ErrInvalidIdentifier, ct, c.Table, c.Column)
			}
		}
	}
	return &Store{db: db, content: content}, nil
}

// Open connects to databaseURL and pings it.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate creates the account and content tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const accountColumns = `id, email, username, bio, image, location, website, auth_methods,
	articles_count, comments_count, likes_received, followers_count, following_count,
	created_at, merged_at, merged_from`

// FindAccountsByEmail returns every account whose email matches
// case-insensitively, oldest first.
func (s *Store) FindAccountsByEmail(ctx context.Context, email string) ([]identity.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM goguard_accounts
		WHERE lower(email) = $1
		ORDER BY created_at ASC, id ASC
	`, identity.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("query accounts by email: %w", err)
	}
	defer rows.Close()

	var out []identity.Account
	for rows.Next() {
		var (
			a        identity.Account
			methods  string
			mergedAt sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Email, &a.Username, &a.Bio, &a.Image, &a.Location, &a.Website, &methods,
			&a.ArticlesCount, &a.CommentsCount, &a.LikesReceived, &a.FollowersCount, &a.FollowingCount,
			&a.CreatedAt, &mergedAt, &a.MergedFrom); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.AuthMethods = decodeMethods(methods)
		a.CreatedAt = a.CreatedAt.UTC()
		if mergedAt.Valid {
			t := mergedAt.Time.UTC()
			a.MergedAt = &t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// UpsertAccount inserts account or replaces the row with the same id.
func (s *Store) UpsertAccount(ctx context.Context, account identity.Account) error {
	if account.ID == "" {
		return errors.New("postgres: account id is required")
	}
	created := account.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var mergedAt any
	if account.MergedAt != nil {
		mergedAt = account.MergedAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goguard_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id)
		DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			bio = EXCLUDED.bio,
			image = EXCLUDED.image,
			location = EXCLUDED.location,
			website = EXCLUDED.website,
			auth_methods = EXCLUDED.auth_methods,
			articles_count = EXCLUDED.articles_count,
			comments_count = EXCLUDED.comments_count,
			likes_received = EXCLUDED.likes_received,
			followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count,
			created_at = EXCLUDED.created_at,
			merged_at = EXCLUDED.merged_at,
			merged_from = EXCLUDED.merged_from
	`, account.ID, identity.NormalizeEmail(account.Email), account.Username, account.Bio, account.Image,
		account.Location, account.Website, encodeMethods(account.AuthMethods),
		account.ArticlesCount, account.CommentsCount, account.LikesReceived, account.FollowersCount,
		account.FollowingCount, created.UTC(), mergedAt, account.MergedFrom)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// DeleteAccount removes the account with id. An unknown id returns
// identity.ErrAccountNotFound.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM goguard_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

// TransferContentOwnership rewrites every owner column of content from
// fromID to toID in one transaction.
func (s *Store) TransferContentOwnership(ctx context.Context, content identity.ContentType, fromID, toID string) error {
	stmts, err := s.transferStatements(content)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, fromID, toID); err != nil {
			return fmt.Errorf("transfer %s: %w", content, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer tx: %w", err)
	}
	return nil
}

func (s *Store) transferStatements(content identity.ContentType) ([]string, error) {
	cols, ok := s.content[content]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContent, content)
	}
	stmts := make([]string, 0, len(cols))
	for _, c := range cols {
		stmts = append(stmts, fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`, c.Table, c.Column, c.Column))
	}
	return stmts, nil
}

func encodeMethods(methods []identity.AuthMethod) string {
	parts := make([]string, 0, len(methods))
	for _, m := range methods {
		if m != "" {
			parts = append(parts, string(m))
		}
	}
	return strings.Join(parts, ",")
}

func decodeMethods(raw string) []identity.AuthMethod {
	if raw == "" {
		return []identity.AuthMethod{}
	}
	parts := strings.Split(raw, ",")
	out := make([]identity.AuthMethod, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, identity.AuthMethod(p))
		}
	}
	return out
}
