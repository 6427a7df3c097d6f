package database

import (
	"database/sql"
	"fmt"
	"time"
)

const conversationSelect = `
SELECT c.id, c.external_id, c.ad_id, c.starter_id, c.recipient_id, c.status,
	c.last_message_time, c.created_at,
	ad.external_id, ad.title, ad.owner_id,
	s.id, s.first_name, s.last_name, s.email,
	r.id, r.first_name, r.last_name, r.email
FROM conversations c
JOIN ads ad ON ad.id = c.ad_id
JOIN accounts s ON s.id = c.starter_id
JOIN accounts r ON r.id = c.recipient_id `

func scanConversation(row interface{ Scan(...any) error }) (Conversation, error) {
	var c Conversation
	err := row.Scan(
		&c.Id,
		&c.ExternalId,
		&c.AdId,
		&c.StarterId,
		&c.RecipientId,
		&c.Status,
		&c.LastMessageTime,
		&c.CreatedAt,
		&c.Ad.ExternalId,
		&c.Ad.Title,
		&c.Ad.OwnerId,
		&c.Starter.Id,
		&c.Starter.FirstName,
		&c.Starter.LastName,
		&c.Starter.Email,
		&c.Recipient.Id,
		&c.Recipient.FirstName,
		&c.Recipient.LastName,
		&c.Recipient.Email,
	)
	c.Ad.Id = c.AdId
	return c, err
}

func (db *PgRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (first_name, last_name, email, password_hash, verification_token, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) "+
			"RETURNING id, first_name, last_name, email, is_verified, role, created_at, updated_at",
		params.FirstName,
		params.LastName,
		params.Email,
		params.PasswordHash,
		params.VerificationToken,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.IsVerified,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, first_name, last_name, email, is_verified, role, created_at, updated_at "+
			"FROM accounts WHERE id = $1 LIMIT 1",
		id,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.IsVerified,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, first_name, last_name, email, password_hash, is_verified, role, created_at, updated_at "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.IsVerified,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) VerifyAccount(token string) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE accounts SET is_verified = TRUE, verification_token = '', updated_at = $2 "+
			"WHERE verification_token = $1 AND verification_token <> '' "+
			"RETURNING id, first_name, last_name, email, is_verified, role",
		token,
		time.Now().UTC(),
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.IsVerified,
		&u.Role,
	)

	return u, err
}

func (db *PgRepository) GetAdByExternalId(externalId string) (Ad, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, owner_id, created_at FROM ads "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var ad Ad
	err := row.Scan(
		&ad.Id,
		&ad.ExternalId,
		&ad.Title,
		&ad.OwnerId,
		&ad.CreatedAt,
	)

	return ad, err
}

func (db *PgRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	row := db.conn.QueryRow(conversationSelect+"WHERE c.external_id = $1 LIMIT 1", externalId)
	return scanConversation(row)
}

// GetConversationByParticipants looks up the conversation for an ad and an
// unordered participant pair, checking both starter/recipient orderings.
func (db *PgRepository) GetConversationByParticipants(adId, userA, userB int) (Conversation, error) {
	row := db.conn.QueryRow(
		conversationSelect+
			"WHERE c.ad_id = $1 AND ((c.starter_id = $2 AND c.recipient_id = $3) "+
			"OR (c.starter_id = $3 AND c.recipient_id = $2)) LIMIT 1",
		adId,
		userA,
		userB,
	)
	return scanConversation(row)
}

func (db *PgRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	res := db.conn.QueryRow(
		"INSERT INTO conversations (external_id, ad_id, starter_id, recipient_id, last_message_time, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id",
		params.ExternalId,
		params.AdId,
		params.StarterId,
		params.RecipientId,
		time.Now().UTC(),
	)

	var id int
	if err := res.Scan(&id); err != nil {
		return Conversation{}, err
	}

	return db.GetConversationByExternalId(params.ExternalId)
}

func (db *PgRepository) ListConversations(accountId int) ([]Conversation, error) {
	rows, err := db.conn.Query(
		conversationSelect+
			"WHERE c.starter_id = $1 OR c.recipient_id = $1 "+
			"ORDER BY c.last_message_time DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}

		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range conversations {
		last, err := db.lastMessage(conversations[i].Id)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		conversations[i].LastMessage = &last
	}

	return conversations, nil
}

func (db *PgRepository) lastMessage(conversationId int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, sender_id, content, is_read, created_at FROM messages "+
			"WHERE conversation_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1",
		conversationId,
	)

	var m Message
	m.ConversationId = conversationId
	err := row.Scan(&m.Id, &m.ExternalId, &m.SenderId, &m.Content, &m.IsRead, &m.CreatedAt)
	return m, err
}

func (db *PgRepository) ListConversationIds(accountId int) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT external_id FROM conversations WHERE starter_id = $1 OR recipient_id = $1",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// CreateMessage inserts the message and bumps the conversation's
// last_message_time in one transaction. Both the REST and the realtime send
// paths go through here, so the two can never drift.
func (db *PgRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO messages (external_id, conversation_id, sender_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, external_id, conversation_id, sender_id, content, is_read, created_at",
		params.ExternalId,
		params.ConversationId,
		params.SenderId,
		params.Content,
		time.Now().UTC(),
	)

	var m Message
	err = res.Scan(
		&m.Id,
		&m.ExternalId,
		&m.ConversationId,
		&m.SenderId,
		&m.Content,
		&m.IsRead,
		&m.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec(
		"UPDATE conversations SET last_message_time = $1 WHERE id = $2",
		m.CreatedAt,
		m.ConversationId,
	)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return m, nil
}

func (db *PgRepository) GetMessageByExternalId(externalId string) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT m.id, m.external_id, m.conversation_id, m.sender_id, m.content, m.is_read, m.created_at, "+
			"c.external_id, c.starter_id, c.recipient_id, "+
			"a.first_name, a.last_name "+
			"FROM messages m "+
			"JOIN conversations c ON c.id = m.conversation_id "+
			"JOIN accounts a ON a.id = m.sender_id "+
			"WHERE m.external_id = $1 LIMIT 1",
		externalId,
	)

	var m Message
	err := row.Scan(
		&m.Id,
		&m.ExternalId,
		&m.ConversationId,
		&m.SenderId,
		&m.Content,
		&m.IsRead,
		&m.CreatedAt,
		&m.Conversation.ExternalId,
		&m.Conversation.StarterId,
		&m.Conversation.RecipientId,
		&m.Sender.FirstName,
		&m.Sender.LastName,
	)
	m.Conversation.Id = m.ConversationId
	m.Sender.Id = m.SenderId

	return m, err
}

// MarkMessageRead is idempotent; marking an already read message is a no-op.
func (db *PgRepository) MarkMessageRead(messageId int) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET is_read = TRUE WHERE id = $1",
		messageId,
	)

	return err
}

// MarkConversationRead marks every message not sent by readerId as read.
func (db *PgRepository) MarkConversationRead(conversationId, readerId int) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET is_read = TRUE "+
			"WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE",
		conversationId,
		readerId,
	)

	return err
}

func (db *PgRepository) GetMessages(conversationId, page, limit int) ([]Message, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := db.conn.QueryRow(
		"SELECT count(*) FROM messages WHERE conversation_id = $1",
		conversationId,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.conn.Query(
		"SELECT m.id, m.external_id, m.sender_id, m.content, m.is_read, m.created_at, "+
			"a.first_name, a.last_name "+
			"FROM messages m JOIN accounts a ON a.id = m.sender_id "+
			"WHERE m.conversation_id = $1 "+
			"ORDER BY m.created_at ASC, m.id ASC LIMIT $2 OFFSET $3",
		conversationId,
		limit,
		(page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		m.ConversationId = conversationId
		if err := rows.Scan(
			&m.Id,
			&m.ExternalId,
			&m.SenderId,
			&m.Content,
			&m.IsRead,
			&m.CreatedAt,
			&m.Sender.FirstName,
			&m.Sender.LastName,
		); err != nil {
			return nil, 0, err
		}
		m.Sender.Id = m.SenderId

		messages = append(messages, m)
	}

	return messages, total, rows.Err()
}

func (db *PgRepository) CountUnread(accountId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT count(*) FROM messages m "+
			"JOIN conversations c ON c.id = m.conversation_id "+
			"WHERE (c.starter_id = $1 OR c.recipient_id = $1) "+
			"AND m.sender_id <> $1 AND m.is_read = FALSE",
		accountId,
	)

	var count int
	err := row.Scan(&count)
	return count, err
}
