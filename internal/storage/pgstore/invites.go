package pgstore

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"PulseMessenger/server/internal/models"
)

func (s *Store) CreateInvite(ctx context.Context, invite *models.Invite) (int, error) {
	sqlStr, args, err := psql.Insert("invites").
		Columns("sender_id", "receiver_id", "chat_id", "group_name", "status").
		Values(invite.SenderID, invite.ReceiverID, invite.ChatID, invite.GroupName, models.InvitePending).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building insert invite query")
	}

	var id int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "creating invite")
	}
	return id, nil
}

func (s *Store) GetInviteByID(ctx context.Context, id int) (*models.Invite, error) {
	sqlStr, args, err := psql.Select("id", "sender_id", "receiver_id", "chat_id", "group_name", "status", "created_at").
		From("invites").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building select invite query")
	}

	var invite models.Invite
	err = s.pool.QueryRow(ctx, sqlStr, args...).
		Scan(&invite.ID, &invite.SenderID, &invite.ReceiverID, &invite.ChatID,
			&invite.GroupName, &invite.Status, &invite.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrInviteNotFound
		}
		return nil, errors.Wrap(err, "fetching invite")
	}
	return &invite, nil
}

func (s *Store) PendingInviteExists(ctx context.Context, senderID, receiverID int, chatID *int) (bool, error) {
	cond := squirrel.And{
		squirrel.Eq{"sender_id": senderID},
		squirrel.Eq{"receiver_id": receiverID},
		squirrel.Eq{"status": models.InvitePending},
		squirrel.Eq{"chat_id": chatID},
	}

	sqlStr, args, err := psql.Select("COUNT(*)").
		From("invites").
		Where(cond).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building pending invite query")
	}

	var count int
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return false, errors.Wrap(err, "checking pending invite")
	}
	return count > 0, nil
}

func (s *Store) PendingInvitesFor(ctx context.Context, receiverID int) ([]models.Invite, error) {
	sqlStr, args, err := psql.Select("i.id", "i.sender_id", "i.receiver_id", "i.chat_id",
		"i.group_name", "i.status", "i.created_at", "u.username").
		From("invites i").
		Join("users u ON i.sender_id = u.id").
		Where(squirrel.Eq{
			"i.receiver_id": receiverID,
			"i.status":      models.InvitePending,
		}).
		OrderBy("i.created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building pending invites query")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching pending invites")
	}
	defer rows.Close()

	var invites []models.Invite
	for rows.Next() {
		var invite models.Invite
		err := rows.Scan(&invite.ID, &invite.SenderID, &invite.ReceiverID, &invite.ChatID,
			&invite.GroupName, &invite.Status, &invite.CreatedAt, &invite.SenderUsername)
		if err != nil {
			return nil, errors.Wrap(err, "scanning invite row")
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

func (s *Store) MarkInviteStatus(ctx context.Context, id int, target models.InviteStatus) error {
	// Conditional update: only a pending invite can move to a terminal
	// state. Of two concurrent responders exactly one matches the WHERE
	// clause; the other observes the terminal state.
	sqlStr, args, err := psql.Update("invites").
		Set("status", target).
		Where(squirrel.Eq{
			"id":     id,
			"status": models.InvitePending,
		}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building mark invite query")
	}

	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return errors.Wrap(err, "marking invite status")
	}
	if tag.RowsAffected() == 0 {
		current, err := s.GetInviteByID(ctx, id)
		if err != nil {
			return err
		}
		return models.E(models.KindInvalidTransition,
			"invite already "+string(current.Status))
	}
	return nil
}

func (s *Store) SetVisibility(ctx context.Context, chatID, userID int, kind models.VisibilityKind) error {
	sqlStr, args, err := psql.Insert("chat_visibility").
		Columns("chat_id", "user_id", "kind").
		Values(chatID, userID, kind).
		Suffix("ON CONFLICT (chat_id, user_id, kind) DO NOTHING").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building set visibility query")
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "setting visibility")
	}
	return nil
}

func (s *Store) ClearVisibility(ctx context.Context, chatID, userID int, kind models.VisibilityKind) error {
	sqlStr, args, err := psql.Delete("chat_visibility").
		Where(squirrel.Eq{
			"chat_id": chatID,
			"user_id": userID,
			"kind":    kind,
		}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building clear visibility query")
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "clearing visibility")
	}
	return nil
}

func (s *Store) ClearAllVisibility(ctx context.Context, chatID int) error {
	sqlStr, args, err := psql.Delete("chat_visibility").
		Where(squirrel.Eq{"chat_id": chatID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building clear all visibility query")
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "clearing chat visibility")
	}
	return nil
}

func (s *Store) GetVisibility(ctx context.Context, chatID, userID int) (bool, bool, error) {
	sqlStr, args, err := psql.Select("kind").
		From("chat_visibility").
		Where(squirrel.Eq{
			"chat_id": chatID,
			"user_id": userID,
		}).
		ToSql()
	if err != nil {
		return false, false, errors.Wrap(err, "building get visibility query")
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return false, false, errors.Wrap(err, "fetching visibility")
	}
	defer rows.Close()

	var archived, deleted bool
	for rows.Next() {
		var kind models.VisibilityKind
		if err := rows.Scan(&kind); err != nil {
			return false, false, errors.Wrap(err, "scanning visibility row")
		}
		switch kind {
		case models.VisibilityArchived:
			archived = true
		case models.VisibilityDeleted:
			deleted = true
		}
	}
	return archived, deleted, rows.Err()
}
