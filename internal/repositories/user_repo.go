package repositories

import (
	"context"
	"errors"
	"strings"

	"rentdesk/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrEmailTaken = errors.New("email already registered")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type userRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, organization_id, email, password_hash, full_name, role, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.OrganizationID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, organization_id, email, password_hash, full_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, user.ID, user.OrganizationID, strings.ToLower(user.Email), user.PasswordHash, user.FullName, user.Role)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, strings.ToLower(email)))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, hash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
