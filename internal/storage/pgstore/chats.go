package pgstore

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"PulseMessenger/server/internal/models"
)

func (s *Store) CreateChat(ctx context.Context, chat *models.Chat) (int, error) {
	sqlStr, args, err := psql.Insert("chats").
		Columns("is_group", "name", "last_message_at").
		Values(chat.IsGroup, chat.Name, chat.LastMessageAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building insert chat query")
	}

	var id int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "creating chat")
	}
	return id, nil
}

func (s *Store) GetChatByID(ctx context.Context, id int) (*models.Chat, error) {
	sqlStr, args, err := psql.Select("id", "is_group", "name", "last_message_at", "created_at").
		From("chats").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select chat query")
	}

	var chat models.Chat
	err = s.pool.QueryRow(ctx, sqlStr, args...).
		Scan(&chat.ID, &chat.IsGroup, &chat.Name, &chat.LastMessageAt, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrChatNotFound
		}
		return nil, errors.Wrap(err, "fetching chat")
	}
	return &chat, nil
}

func (s *Store) FindDirectChat(ctx context.Context, userA, userB int) (int, error) {
	sqlStr, args, err := psql.Select("c.id").
		From("chats c").
		Join("participants pa ON c.id = pa.chat_id").
		Join("participants pb ON c.id = pb.chat_id").
		Where(squirrel.Eq{
			"c.is_group": false,
			"pa.user_id": userA,
			"pb.user_id": userB,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building find direct chat query")
	}

	var id int
	err = s.pool.QueryRow(ctx, sqlStr, args...).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "finding direct chat")
	}
	return id, nil
}

func (s *Store) ChatsForUser(ctx context.Context, userID int) ([]models.Chat, error) {
	sqlStr, args, err := psql.Select("c.id", "c.is_group", "c.name", "c.last_message_at", "c.created_at").
		From("chats c").
		Join("participants p ON c.id = p.chat_id").
		Where(squirrel.Eq{"p.user_id": userID}).
		OrderBy("c.last_message_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building chats for user query")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching chats")
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(&chat.ID, &chat.IsGroup, &chat.Name, &chat.LastMessageAt, &chat.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning chat row")
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *Store) TouchLastMessage(ctx context.Context, chatID int, at time.Time) error {
	// Advance-only, like message status: a touch carrying an older timestamp
	// that commits late must not drag last_message_at backwards.
	sqlStr, args, err := psql.Update("chats").
		Set("last_message_at", at).
		Where(squirrel.And{
			squirrel.Eq{"id": chatID},
			squirrel.Lt{"last_message_at": at},
		}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building touch query")
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "updating last_message_at")
	}
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, chatID, userID int, isAdmin bool) error {
	sqlStr, args, err := psql.Insert("participants").
		Columns("chat_id", "user_id", "is_admin").
		Values(chatID, userID, isAdmin).
		Suffix("ON CONFLICT (chat_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building insert participant query")
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "adding participant")
	}
	return nil
}

func (s *Store) IsParticipant(ctx context.Context, chatID, userID int) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1
            FROM participants
            WHERE chat_id = $1 AND user_id = $2
        )
    `

	var exists bool
	if err := s.pool.QueryRow(ctx, query, chatID, userID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "checking participant")
	}
	return exists, nil
}

func (s *Store) Participants(ctx context.Context, chatID int) ([]models.User, error) {
	sqlStr, args, err := psql.Select("u.id", "u.username", "u.email", "u.profile_picture").
		From("users u").
		Join("participants p ON u.id = p.user_id").
		Where(squirrel.Eq{"p.chat_id": chatID}).
		OrderBy("p.joined_at ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building participants query")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching participants")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.ProfilePicture); err != nil {
			return nil, errors.Wrap(err, "scanning participant row")
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
