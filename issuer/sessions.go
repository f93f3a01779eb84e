package issuer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"campus-tickets-backend/model"
)

const sessionTable = "purchase_sessions"

var sessionCols = []string{"id", "buyer", "event_app_id", "asset_id", "state", "checked_in", "updated_at"}

// Store persists purchase sessions and doubles as the local ticket registry:
// which assets this service minted for which event, and which of them have
// been checked in. A crash mid-saga leaves a row behind instead of vanishing.
type Store interface {
	CreateSession(ctx context.Context, s *model.PurchaseSession) error
	UpdateSession(ctx context.Context, id, state string, assetID uint64) error
	ActiveSession(ctx context.Context, buyer string, eventAppID uint64) (*model.PurchaseSession, bool, error)
	SessionsForBuyer(ctx context.Context, buyer string) ([]model.PurchaseSession, error)
	AssetsForEvent(ctx context.Context, eventAppID uint64) (map[uint64]bool, error)
	CheckedInAssets(ctx context.Context) (map[uint64]bool, error)
	MarkCheckedIn(ctx context.Context, assetID uint64) error
}

// NewStore returns the MySQL-backed session store.
func NewStore(db *sql.DB) Store {
	return &sqlStore{db: db}
}

type sqlStore struct {
	db *sql.DB
}

func (s *sqlStore) CreateSession(ctx context.Context, session *model.PurchaseSession) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("createSession: error begining db transaction: %s", err)
	}

	values := []interface{}{
		session.ID,
		session.Buyer,
		session.EventAppID,
		session.AssetID,
		session.State,
		0,
		session.UpdatedAt,
	}

	var params []string
	for range sessionCols {
		params = append(params, "?")
	}
	tsql := fmt.Sprintf(`INSERT INTO %s(%s) VALUES (%s);`, sessionTable, strings.Join(sessionCols, ", "), strings.Join(params, ", "))

	stmt, err := tx.Prepare(tsql)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("createSession: error preparing sql query: %s", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(values...); err != nil {
		tx.Rollback()
		return fmt.Errorf("createSession: unable to insert session: %s", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("createSession: error commiting session: %w", err)
	}
	return nil
}

func (s *sqlStore) UpdateSession(ctx context.Context, id, state string, assetID uint64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("updateSession: error begining db transaction: %s", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`UPDATE %s SET state = ?, asset_id = ?, updated_at = ? WHERE id = ?;`, sessionTable))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("updateSession: error preparing sql query: %s", err)
	}
	defer stmt.Close()

	result, err := stmt.Exec(state, assetID, time.Now().Unix(), id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("updateSession: unable to update session: %s", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("updateSession: error reading rows affected: %w", err)
	}
	if updated == 0 {
		tx.Rollback()
		return fmt.Errorf("updateSession: no row updated")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("updateSession: error commiting session: %w", err)
	}
	return nil
}

func (s *sqlStore) ActiveSession(ctx context.Context, buyer string, eventAppID uint64) (*model.PurchaseSession, bool, error) {
	q := fmt.Sprintf(`SELECT id, buyer, event_app_id, asset_id, state, updated_at FROM %s
		WHERE buyer = ? AND event_app_id = ? AND state IN (?, ?)`, sessionTable)

	st, rows, err := query(s.db, q, []interface{}{buyer, eventAppID, model.SessionReserved, model.SessionOptedIn})
	if err != nil {
		return nil, false, fmt.Errorf("activeSession: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	if rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, false, fmt.Errorf("activeSession: %w", err)
		}
		return session, true, nil
	}
	return nil, false, nil
}

func (s *sqlStore) SessionsForBuyer(ctx context.Context, buyer string) ([]model.PurchaseSession, error) {
	q := fmt.Sprintf(`SELECT id, buyer, event_app_id, asset_id, state, updated_at FROM %s
		WHERE buyer = ? ORDER BY updated_at`, sessionTable)

	st, rows, err := query(s.db, q, []interface{}{buyer})
	if err != nil {
		return nil, fmt.Errorf("sessionsForBuyer: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	var sessions []model.PurchaseSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sessionsForBuyer: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

func (s *sqlStore) AssetsForEvent(ctx context.Context, eventAppID uint64) (map[uint64]bool, error) {
	q := fmt.Sprintf(`SELECT asset_id FROM %s WHERE event_app_id = ? AND asset_id > 0`, sessionTable)

	st, rows, err := query(s.db, q, []interface{}{eventAppID})
	if err != nil {
		return nil, fmt.Errorf("assetsForEvent: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	assets := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("assetsForEvent: error scanning row: %s", err)
		}
		assets[id] = true
	}
	return assets, nil
}

func (s *sqlStore) CheckedInAssets(ctx context.Context) (map[uint64]bool, error) {
	q := fmt.Sprintf(`SELECT asset_id FROM %s WHERE checked_in = 1`, sessionTable)

	st, rows, err := query(s.db, q, nil)
	if err != nil {
		return nil, fmt.Errorf("checkedInAssets: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	assets := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("checkedInAssets: error scanning row: %s", err)
		}
		assets[id] = true
	}
	return assets, nil
}

func (s *sqlStore) MarkCheckedIn(ctx context.Context, assetID uint64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("markCheckedIn: error begining db transaction: %s", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`UPDATE %s SET checked_in = 1 WHERE asset_id = ?;`, sessionTable))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("markCheckedIn: error preparing sql query: %s", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(assetID); err != nil {
		tx.Rollback()
		return fmt.Errorf("markCheckedIn: unable to update registry: %s", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("markCheckedIn: error commiting update: %w", err)
	}
	return nil
}

func scanSession(rows *sql.Rows) (*model.PurchaseSession, error) {
	var session model.PurchaseSession
	err := rows.Scan(
		&session.ID,
		&session.Buyer,
		&session.EventAppID,
		&session.AssetID,
		&session.State,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanSession: error while scanning row: %s", err)
	}
	return &session, nil
}

func query(db *sql.DB, query string, args []interface{}) (*sql.Stmt, *sql.Rows, error) {
	st, err := db.Prepare(query)
	if err != nil {
		return nil, nil, fmt.Errorf("query: unable to prepare query: %s", err)
	}

	rows, err := st.Query(args...)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("query: error querying db: %s", err)
	}

	return st, rows, nil
}
