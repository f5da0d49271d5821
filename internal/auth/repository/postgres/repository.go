package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ebuchanan1123/autopiece/internal/auth/domain"
	autherror "github.com/ebuchanan1123/autopiece/internal/errors"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements domain.UserRepository and
// domain.SessionRepository against the users and refresh_sessions tables.
// Every statement is bounded by the configured query timeout.
type PostgresRepository struct {
	db           DB
	queryTimeout time.Duration
}

func NewPostgresRepository(db DB, queryTimeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, queryTimeout: queryTimeout}
}

func (r *PostgresRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

const userColumns = `id, email, password_hash, role, phone,
		failed_login_count, last_failed_login_at, lock_until, created_at, updated_at`

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
		LIMIT 1;
	`, email)

	return scanUser(row, "get user by email")
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
		LIMIT 1;
	`, id)

	return scanUser(row, "get user by id")
}

func scanUser(row pgx.Row, op string) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.Phone,
		&user.FailedLoginCount, &user.LastFailedLoginAt, &user.LockUntil,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, autherror.Storage(op, err)
	}

	return &user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *domain.User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, phone,
			failed_login_count, last_failed_login_at, lock_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NULL, NULL, $6, $7)
	`, user.ID, user.Email, user.PasswordHash, user.Role, user.Phone,
		user.CreatedAt, user.UpdatedAt)

	return autherror.Storage("create user", err)
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, userID, passwordHash)

	return autherror.Storage("update password hash", err)
}

// RecordFailedLogin runs two store-atomic updates: increment the counter,
// then set the lock once the counter has reached the threshold. Doing the
// arithmetic in SQL keeps concurrent failed attempts from under-counting.
func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, userID string, maxFailures int, lockFor time.Duration) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET failed_login_count = failed_login_count + 1,
			last_failed_login_at = now(),
			updated_at = now()
		WHERE id = $1
	`, userID)
	if err != nil {
		return autherror.Storage("record failed login", err)
	}

	_, err = r.db.Exec(ctx, `
		UPDATE users
		SET lock_until = now() + make_interval(secs => $3),
			updated_at = now()
		WHERE id = $1 AND failed_login_count >= $2
	`, userID, maxFailures, lockFor.Seconds())

	return autherror.Storage("lock account", err)
}

func (r *PostgresRepository) ResetLoginFailures(ctx context.Context, userID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET failed_login_count = 0,
			last_failed_login_at = NULL,
			lock_until = NULL,
			updated_at = now()
		WHERE id = $1
	`, userID)

	return autherror.Storage("reset login failures", err)
}

const sessionColumns = `id, token_id, user_id, secret_hash, expires_at,
		revoked_at, replaced_by_token_id, ip_hash, user_agent_hash, created_at, last_used_at`

func (r *PostgresRepository) Insert(ctx context.Context, session *domain.RefreshSession) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, session.ID, session.TokenID, session.UserID, session.SecretHash,
		session.ExpiresAt, session.RevokedAt, session.ReplacedByTokenID,
		session.IPHash, session.UserAgentHash, session.CreatedAt, session.LastUsedAt)

	return autherror.Storage("insert refresh session", err)
}

func (r *PostgresRepository) GetByTokenID(ctx context.Context, tokenID string) (*domain.RefreshSession, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM refresh_sessions
		WHERE token_id = $1
		LIMIT 1;
	`, tokenID)

	var session domain.RefreshSession
	err := row.Scan(
		&session.ID, &session.TokenID, &session.UserID, &session.SecretHash,
		&session.ExpiresAt, &session.RevokedAt, &session.ReplacedByTokenID,
		&session.IPHash, &session.UserAgentHash, &session.CreatedAt, &session.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, autherror.Storage("get refresh session", err)
	}

	return &session, nil
}

// MarkRotated revokes the session and links its successor in one
// conditional update. The revoked_at guard makes concurrent rotations of
// the same token produce exactly one winner.
func (r *PostgresRepository) MarkRotated(ctx context.Context, tokenID, replacedByTokenID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now(),
			replaced_by_token_id = $2,
			last_used_at = now()
		WHERE token_id = $1 AND revoked_at IS NULL
	`, tokenID, replacedByTokenID)
	if err != nil {
		return false, autherror.Storage("mark session rotated", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, tokenID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now(), last_used_at = now()
		WHERE token_id = $1 AND revoked_at IS NULL
	`, tokenID)

	return autherror.Storage("revoke session", err)
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)

	return autherror.Storage("revoke all sessions", err)
}

func (r *PostgresRepository) RevokeForUser(ctx context.Context, userID, tokenID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE user_id = $1 AND token_id = $2 AND revoked_at IS NULL
	`, userID, tokenID)

	return autherror.Storage("revoke user session", err)
}

func (r *PostgresRepository) ListActiveForUser(ctx context.Context, userID string) ([]domain.RefreshSession, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM refresh_sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > now()
		ORDER BY last_used_at DESC NULLS LAST, created_at DESC
	`, userID)
	if err != nil {
		return nil, autherror.Storage("list sessions", err)
	}
	defer rows.Close()

	var sessions []domain.RefreshSession
	for rows.Next() {
		var session domain.RefreshSession
		err := rows.Scan(
			&session.ID, &session.TokenID, &session.UserID, &session.SecretHash,
			&session.ExpiresAt, &session.RevokedAt, &session.ReplacedByTokenID,
			&session.IPHash, &session.UserAgentHash, &session.CreatedAt, &session.LastUsedAt,
		)
		if err != nil {
			return nil, autherror.Storage("scan session", err)
		}

		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, autherror.Storage("list sessions", err)
	}

	return sessions, nil
}
