package pgstore

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"PulseMessenger/server/internal/models"
)

const userColumns = "id, username, email, password_hash, is_verified, " +
	"verification_code, reset_token, reset_token_expiry, about_me, profile_picture, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.IsVerified, &user.VerificationCode, &user.ResetToken,
		&user.ResetTokenExpiry, &user.AboutMe, &user.ProfilePicture, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "scanning user")
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) (int, error) {
	sqlStr, args, err := psql.Insert("users").
		Columns("username", "email", "password_hash", "verification_code", "about_me", "profile_picture").
		Values(user.Username, user.Email, user.PasswordHash, user.VerificationCode, user.AboutMe, user.ProfilePicture).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building insert user query")
	}

	var id int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "creating user")
	}
	return id, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	sqlStr, args, err := psql.Select(userColumns).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select user query")
	}
	return scanUser(s.pool.QueryRow(ctx, sqlStr, args...))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	sqlStr, args, err := psql.Select(userColumns).
		From("users").
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select user query")
	}
	return scanUser(s.pool.QueryRow(ctx, sqlStr, args...))
}

func (s *Store) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	sqlStr, args, err := psql.Select(userColumns).
		From("users").
		Where(squirrel.Eq{"reset_token": token}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select user query")
	}
	return scanUser(s.pool.QueryRow(ctx, sqlStr, args...))
}

func (s *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	sqlStr, args, err := psql.Select("COUNT(*)").
		From("users").
		Where(squirrel.Or{
			squirrel.Eq{"username": username},
			squirrel.Eq{"email": email},
		}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building user exists query")
	}

	var count int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return false, errors.Wrap(err, "checking user existence")
	}
	return count > 0, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	sqlStr, args, err := psql.Update("users").
		SetMap(map[string]interface{}{
			"username":           user.Username,
			"email":              user.Email,
			"password_hash":      user.PasswordHash,
			"is_verified":        user.IsVerified,
			"verification_code":  user.VerificationCode,
			"reset_token":        user.ResetToken,
			"reset_token_expiry": user.ResetTokenExpiry,
			"about_me":           user.AboutMe,
			"profile_picture":    user.ProfilePicture,
		}).
		Where(squirrel.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building update user query")
	}

	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *Store) SearchUsers(ctx context.Context, query string, excludeID int) ([]models.User, error) {
	pattern := "%" + query + "%"
	sqlStr, args, err := psql.Select("id", "username", "email", "about_me", "profile_picture").
		From("users").
		Where(squirrel.And{
			squirrel.Or{
				squirrel.ILike{"username": pattern},
				squirrel.ILike{"email": pattern},
			},
			squirrel.NotEq{"id": excludeID},
		}).
		OrderBy("username ASC").
		Limit(20).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building search users query")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "searching users")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.AboutMe, &user.ProfilePicture); err != nil {
			return nil, errors.Wrap(err, "scanning user row")
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
