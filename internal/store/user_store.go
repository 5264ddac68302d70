package store

import (
	"context"

	"openvault/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, user models.User) error {
	query := `
		INSERT INTO users (id, first_name, last_name, email, phone_number, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query, user.ID, user.FirstName, user.LastName, user.Email, user.PhoneNumber, user.PasswordHash)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, first_name, last_name, email, phone_number, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		return models.User{}, notFound(err)
	}
	return row, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, first_name, last_name, email, phone_number, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		return models.User{}, notFound(err)
	}
	return row, nil
}
