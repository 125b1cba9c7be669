package services

import (
	"context"
	"database/sql"
	"fmt"

	"phoenixd-dashboard-server/models"

	_ "github.com/lib/pq"
)

type DBService struct {
	db *sql.DB
}

func NewDBService(host string, port int, user, password, dbname string) (*DBService, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DBService{db: db}, nil
}

func (s *DBService) Close() error {
	return s.db.Close()
}

// InitSchema creates tables if they don't exist
func (s *DBService) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS contact_addresses (
		id BIGSERIAL PRIMARY KEY,
		contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
		address_type VARCHAR(30) NOT NULL,
		address TEXT NOT NULL,
		label VARCHAR(100)
	);

	CREATE TABLE IF NOT EXISTS node_connections (
		id BIGSERIAL PRIMARY KEY,
		label VARCHAR(100) NOT NULL,
		url TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS recurring_payments (
		id BIGSERIAL PRIMARY KEY,
		contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
		address_id BIGINT NOT NULL REFERENCES contact_addresses(id),
		node_id BIGINT REFERENCES node_connections(id),
		category_id BIGINT,
		amount_sat BIGINT NOT NULL,
		frequency VARCHAR(30) NOT NULL,
		time_of_day VARCHAR(5) NOT NULL DEFAULT '00:00',
		day_of_week SMALLINT NOT NULL DEFAULT 1,
		day_of_month SMALLINT NOT NULL DEFAULT 1,
		message TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		next_run_at TIMESTAMPTZ NOT NULL,
		last_run_at TIMESTAMPTZ,
		last_error TEXT,
		total_paid_sat BIGINT NOT NULL DEFAULT 0,
		payment_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS recurring_payment_executions (
		id BIGSERIAL PRIMARY KEY,
		attempt_id VARCHAR(36) NOT NULL,
		recurring_payment_id BIGINT NOT NULL REFERENCES recurring_payments(id) ON DELETE CASCADE,
		status VARCHAR(10) NOT NULL,
		amount_sat BIGINT NOT NULL,
		payment_id TEXT,
		payment_hash TEXT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS payment_links (
		payment_id TEXT PRIMARY KEY,
		contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
		category_id BIGINT,
		recurring_payment_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_recurring_payments_due ON recurring_payments(status, next_run_at);
	CREATE INDEX IF NOT EXISTS idx_executions_recurring_id ON recurring_payment_executions(recurring_payment_id, created_at DESC);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateContact inserts a contact and its addresses
func (s *DBService) CreateContact(ctx context.Context, req *models.CreateContactRequest) (*models.Contact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	contact := &models.Contact{Name: req.Name}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO contacts (name) VALUES ($1)
		RETURNING id, created_at
	`, req.Name).Scan(&contact.ID, &contact.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, addr := range req.Addresses {
		created := models.ContactAddress{
			ContactID: contact.ID,
			Type:      addr.Type,
			Address:   addr.Address,
			Label:     addr.Label,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO contact_addresses (contact_id, address_type, address, label)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, contact.ID, addr.Type, addr.Address, addr.Label).Scan(&created.ID)
		if err != nil {
			return nil, err
		}
		contact.Addresses = append(contact.Addresses, created)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return contact, nil
}

// GetContact retrieves a contact with its addresses
func (s *DBService) GetContact(ctx context.Context, id int64) (*models.Contact, error) {
	contact := &models.Contact{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM contacts WHERE id = $1
	`, id).Scan(&contact.ID, &contact.Name, &contact.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	addresses, err := s.listContactAddresses(ctx, id)
	if err != nil {
		return nil, err
	}
	contact.Addresses = addresses

	return contact, nil
}

func (s *DBService) listContactAddresses(ctx context.Context, contactID int64) ([]models.ContactAddress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contact_id, address_type, address, label
		FROM contact_addresses WHERE contact_id = $1 ORDER BY id
	`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []models.ContactAddress
	for rows.Next() {
		var addr models.ContactAddress
		var label sql.NullString
		if err := rows.Scan(&addr.ID, &addr.ContactID, &addr.Type, &addr.Address, &label); err != nil {
			return nil, err
		}
		if label.Valid {
			addr.Label = label.String
		}
		addresses = append(addresses, addr)
	}

	return addresses, rows.Err()
}

// ListContacts returns all contacts with their addresses
func (s *DBService) ListContacts(ctx context.Context) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM contacts ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var contact models.Contact
		if err := rows.Scan(&contact.ID, &contact.Name, &contact.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range contacts {
		addresses, err := s.listContactAddresses(ctx, contacts[i].ID)
		if err != nil {
			return nil, err
		}
		contacts[i].Addresses = addresses
	}

	return contacts, nil
}

// DeleteContact removes a contact (cascades to addresses and schedules)
func (s *DBService) DeleteContact(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	return err
}

// CreateNodeConnection registers a phoenixd backend
func (s *DBService) CreateNodeConnection(ctx context.Context, req *models.CreateNodeConnectionRequest) (*models.NodeConnection, error) {
	node := &models.NodeConnection{Label: req.Label, URL: req.URL}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO node_connections (label, url) VALUES ($1, $2)
		RETURNING id, active, created_at
	`, req.Label, req.URL).Scan(&node.ID, &node.Active, &node.CreatedAt)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// ListNodeConnections returns all configured backends
func (s *DBService) ListNodeConnections(ctx context.Context) ([]models.NodeConnection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, url, active, created_at FROM node_connections ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []models.NodeConnection
	for rows.Next() {
		var node models.NodeConnection
		if err := rows.Scan(&node.ID, &node.Label, &node.URL, &node.Active, &node.CreatedAt); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

// ActivateNodeConnection makes one backend active and deactivates the rest
// in the same transaction, so there is never more than one active node.
func (s *DBService) ActivateNodeConnection(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE node_connections SET active = FALSE WHERE active`); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE node_connections SET active = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("node connection not found: %d", id)
	}

	return tx.Commit()
}

// GetActiveNode returns the active backend, or nil when none is active
func (s *DBService) GetActiveNode(ctx context.Context) (*models.NodeConnection, error) {
	node := &models.NodeConnection{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, label, url, active, created_at FROM node_connections WHERE active LIMIT 1
	`).Scan(&node.ID, &node.Label, &node.URL, &node.Active, &node.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// DeleteNodeConnection removes a backend configuration
func (s *DBService) DeleteNodeConnection(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM node_connections WHERE id = $1`, id)
	return err
}
