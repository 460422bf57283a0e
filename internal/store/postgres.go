package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"orderbyvoice/internal/models"
)

// PostgresSessionStore persists sessions in the pedido_estado table,
// line items as a jsonb column. The update guard rides on the UPDATE's
// WHERE clause, so a status change and its fields always land together
// or not at all.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

const sessionColumns = `id, COALESCE(chat_id, ''), cliente_telefone, cliente_nome, cliente_endereco, status, COALESCE(itens, '[]'), created_at, updated_at`

func (s *PostgresSessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM pedido_estado WHERE id = $1`, id)
	return scanSession(row)
}

func (s *PostgresSessionStore) GetLatestActiveByPhone(ctx context.Context, phone string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM pedido_estado
		 WHERE cliente_telefone = $1 AND status NOT IN ('finalizado', 'cancelado')
		 ORDER BY updated_at DESC LIMIT 1`, phone)
	return scanSession(row)
}

func (s *PostgresSessionStore) Create(ctx context.Context, session *models.Session) error {
	items, err := json.Marshal(session.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pedido_estado
		 (id, chat_id, cliente_telefone, cliente_nome, cliente_endereco, status, itens, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.ChatID, session.Phone, session.Name, session.Address,
		string(session.Status), items, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateByID builds one UPDATE statement from the non-nil fields and
// guards it on the session not being terminal. Zero rows affected means
// either an unknown id or a terminal session; a follow-up read
// disambiguates.
func (s *PostgresSessionStore) UpdateByID(ctx context.Context, id string, update SessionUpdate) error {
	sets := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Phone != nil {
		sets = append(sets, "cliente_telefone = "+arg(*update.Phone))
	}
	if update.Name != nil {
		sets = append(sets, "cliente_nome = "+arg(*update.Name))
	}
	if update.Address != nil {
		sets = append(sets, "cliente_endereco = "+arg(*update.Address))
	}
	if update.Items != nil {
		raw, err := json.Marshal(*update.Items)
		if err != nil {
			return fmt.Errorf("marshal items: %w", err)
		}
		sets = append(sets, "itens = "+arg(string(raw)))
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return fmt.Errorf("invalid status %q", *update.Status)
		}
		sets = append(sets, "status = "+arg(string(*update.Status)))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = "+arg(time.Now().UTC()))

	query := `UPDATE pedido_estado SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + arg(id) + ` AND status NOT IN ('finalizado', 'cancelado')`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrTerminal
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		sess     models.Session
		status   string
		rawItems string
	)
	err := row.Scan(&sess.ID, &sess.ChatID, &sess.Phone, &sess.Name, &sess.Address,
		&status, &rawItems, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Status = models.Status(status)
	if err := json.Unmarshal([]byte(rawItems), &sess.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return &sess, nil
}

// PostgresCustomerStore upserts customers keyed by phone.
type PostgresCustomerStore struct {
	db *sql.DB
}

func NewPostgresCustomerStore(db *sql.DB) *PostgresCustomerStore {
	return &PostgresCustomerStore{db: db}
}

func (s *PostgresCustomerStore) Upsert(ctx context.Context, customer *models.Customer) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clientes (nome, telefone, endereco, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (telefone) DO UPDATE
		 SET nome = EXCLUDED.nome, endereco = EXCLUDED.endereco, updated_at = EXCLUDED.updated_at`,
		customer.Name, customer.Phone, customer.Address, now)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}
