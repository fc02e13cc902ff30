package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// poolIface is the subset of *pgxpool.Pool used by PostgresStore; pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store over PostgreSQL.
//
// The pool is owned by the caller; this store must NOT close it.
// Schema/table identifiers are quoted before being spliced into SQL.
type PostgresStore struct {
	pool   poolIface
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultSchema is the schema created by the bundled migrations.
const DefaultSchema = "authority"

// WithSchema sets the Postgres schema used by the store (default "authority").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool poolIface, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const credentialColumns = `id, name, password_hash, refresh_token_hash, created_at, updated_at`

func (s *PostgresStore) table() string { return pgIdent(s.schema, "credentials") }

func (s *PostgresStore) Create(ctx context.Context, c Credential) error {
	const op = "identity.Create"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" || c.Name == "" {
		return pgInvalid(op, "missing id or name")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+credentialColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.PasswordHash, c.RefreshTokenHash, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: field}
		}
		return oops.With("operation", "insert credential").With("id", c.ID).Wrap(err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Credential, error) {
	return s.findOne(ctx, "identity.FindByID", "id", id)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (Credential, error) {
	return s.findOne(ctx, "identity.FindByName", "name", name)
}

func (s *PostgresStore) findOne(ctx context.Context, op, column, value string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	var c Credential
	err := s.pool.QueryRow(ctx,
		`SELECT `+credentialColumns+`
		   FROM `+s.table()+`
		  WHERE `+pgx.Identifier{column}.Sanitize()+` = $1`,
		value,
	).Scan(&c.ID, &c.Name, &c.PasswordHash, &c.RefreshTokenHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, NotFoundError{Op: op, Resource: "credential"}
		}
		return Credential{}, oops.With("operation", "select credential").With(column, value).Wrap(err)
	}
	return c, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, c Credential) error {
	const op = "identity.Upsert"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" || c.Name == "" {
		return pgInvalid(op, "missing id or name")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+credentialColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		    SET name = EXCLUDED.name,
		        password_hash = EXCLUDED.password_hash,
		        refresh_token_hash = EXCLUDED.refresh_token_hash,
		        updated_at = GREATEST(EXCLUDED.updated_at, `+s.table()+`.updated_at + interval '1 microsecond')`,
		c.ID, c.Name, c.PasswordHash, c.RefreshTokenHash, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: field}
		}
		return oops.With("operation", "upsert credential").With("id", c.ID).Wrap(err)
	}
	return nil
}

func (s *PostgresStore) SwapRefreshHash(ctx context.Context, id string, expected, next *string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// IS NOT DISTINCT FROM treats NULL = NULL as a match.
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET refresh_token_hash = $1,
		        updated_at = GREATEST($2, updated_at + interval '1 microsecond')
		  WHERE id = $3
		    AND refresh_token_hash IS NOT DISTINCT FROM $4`,
		next, now, id, expected,
	)
	if err != nil {
		return oops.With("operation", "swap refresh hash").With("id", id).Wrap(err)
	}
	if ct.RowsAffected() != 1 {
		return staleSession()
	}
	return nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE id = $1`, id)
	if err != nil {
		return oops.With("operation", "delete credential").With("id", id).Wrap(err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: "identity.DeleteByID", Resource: "credential"}
	}
	return nil
}

// ---- helpers ----

func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_credentials_name", strings.Contains(c, "name"):
		return FieldName, true
	case strings.HasSuffix(c, "_pkey"):
		return "id", true
	default:
		return "unique", true
	}
}
