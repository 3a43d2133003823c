package pgstore

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"PulseMessenger/server/internal/models"
)

func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) (int, error) {
	sqlStr, args, err := psql.Insert("messages").
		Columns("chat_id", "sender_id", "type", "content", "status", "created_at").
		Values(msg.ChatID, msg.SenderID, msg.Type, msg.Content, msg.Status, msg.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building insert message query")
	}

	var id int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "saving message")
	}
	return id, nil
}

func (s *Store) GetMessageByID(ctx context.Context, id int) (*models.Message, error) {
	sqlStr, args, err := psql.Select("id", "chat_id", "sender_id", "type", "content", "status", "created_at").
		From("messages").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select message query")
	}

	var msg models.Message
	err = s.pool.QueryRow(ctx, sqlStr, args...).
		Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Type, &msg.Content, &msg.Status, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrMessageNotFound
		}
		return nil, errors.Wrap(err, "fetching message")
	}
	return &msg, nil
}

func (s *Store) MessagesForChat(ctx context.Context, chatID int) ([]models.Message, error) {
	// Creation order with id as tiebreak keeps the observed order stable
	// for messages stamped within the same instant.
	sqlStr, args, err := psql.Select("m.id", "m.chat_id", "m.sender_id", "u.username",
		"m.type", "m.content", "m.status", "m.created_at").
		From("messages m").
		Join("users u ON m.sender_id = u.id").
		Where(squirrel.Eq{"m.chat_id": chatID}).
		OrderBy("m.created_at ASC", "m.id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building messages query")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching messages")
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Username,
			&msg.Type, &msg.Content, &msg.Status, &msg.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "scanning message row")
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *Store) AdvanceMessageStatus(ctx context.Context, chatID, readerID int, target models.MessageStatus) ([]int, error) {
	var eligible []models.MessageStatus
	switch target {
	case models.StatusDelivered:
		eligible = []models.MessageStatus{models.StatusSent}
	case models.StatusRead:
		eligible = []models.MessageStatus{models.StatusSent, models.StatusDelivered}
	default:
		return nil, errors.Errorf("cannot advance messages to status %q", target)
	}

	// The status filter makes the update advance-only: a row already at or
	// past the target never matches, so concurrent calls cannot regress it.
	sqlStr, args, err := psql.Update("messages").
		Set("status", target).
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.NotEq{"sender_id": readerID},
			squirrel.Eq{"status": eligible},
		}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building advance status query")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "advancing message status")
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scanning advanced message id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) UpdateMessageContent(ctx context.Context, id int, content string) error {
	sqlStr, args, err := psql.Update("messages").
		Set("content", content).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building update message query")
	}

	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return errors.Wrap(err, "updating message")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, id int) error {
	sqlStr, args, err := psql.Delete("messages").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building delete message query")
	}

	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return errors.Wrap(err, "deleting message")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, chatID, userID int) (int, error) {
	sqlStr, args, err := psql.Select("COUNT(*)").
		From("messages").
		Where(squirrel.And{
			squirrel.Eq{"chat_id": chatID},
			squirrel.NotEq{"sender_id": userID},
			squirrel.NotEq{"status": models.StatusRead},
		}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building unread count query")
	}

	var count int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return count, nil
}
