package market

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"campus-tickets-backend/model"
)

const (
	listingTable = "resale_listings"
	historyTable = "sale_records"
)

var listingCols = []string{"id", "asset_id", "event_app_id", "event_title", "seller", "ask_price_micros", "original_price_micros", "max_resale_price_micros", "listed_at"}
var historyCols = []string{"seller", "buyer", "price_micros", "created_at"}

// Store keeps the open listings and the append-only sale history.
type Store interface {
	CreateListing(ctx context.Context, l *model.ResaleListing) error
	Listing(ctx context.Context, id string) (*model.ResaleListing, bool, error)
	OpenListings(ctx context.Context) ([]model.ResaleListing, error)
	IsAssetListed(ctx context.Context, assetID uint64) (bool, error)
	ListedAssetIDs(ctx context.Context) (map[uint64]bool, error)
	DeleteListing(ctx context.Context, id string) (bool, error)
	AppendSaleRecord(ctx context.Context, r *model.SaleRecord) error
	SaleHistory(ctx context.Context) ([]model.SaleRecord, error)
}

// NewStore returns the MySQL-backed listing and history store.
func NewStore(db *sql.DB) Store {
	return &sqlStore{db: db}
}

type sqlStore struct {
	db *sql.DB
}

func (s *sqlStore) CreateListing(ctx context.Context, l *model.ResaleListing) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("createListing: error begining db transaction: %s", err)
	}

	values := []interface{}{
		l.ID,
		l.AssetID,
		l.EventAppID,
		l.EventTitle,
		l.Seller,
		l.AskPriceMicros,
		l.OriginalPriceMicros,
		l.MaxResalePriceMicros,
		l.ListedAt,
	}

	if err := create(tx, listingTable, listingCols, values); err != nil {
		tx.Rollback()
		return fmt.Errorf("createListing: error inserting listing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("createListing: error commiting listing: %w", err)
	}
	return nil
}

func (s *sqlStore) Listing(ctx context.Context, id string) (*model.ResaleListing, bool, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, strings.Join(listingCols, ", "), listingTable)

	st, rows, err := query(s.db, q, []interface{}{id})
	if err != nil {
		return nil, false, fmt.Errorf("listing: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	if rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, false, fmt.Errorf("listing: %w", err)
		}
		return l, true, nil
	}
	return nil, false, nil
}

func (s *sqlStore) OpenListings(ctx context.Context) ([]model.ResaleListing, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY listed_at`, strings.Join(listingCols, ", "), listingTable)

	st, rows, err := query(s.db, q, nil)
	if err != nil {
		return nil, fmt.Errorf("openListings: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	var listings []model.ResaleListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("openListings: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, nil
}

func (s *sqlStore) IsAssetListed(ctx context.Context, assetID uint64) (bool, error) {
	q := fmt.Sprintf(`SELECT id FROM %s WHERE asset_id = ?`, listingTable)

	st, rows, err := query(s.db, q, []interface{}{assetID})
	if err != nil {
		return false, fmt.Errorf("isAssetListed: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	return rows.Next(), nil
}

func (s *sqlStore) ListedAssetIDs(ctx context.Context) (map[uint64]bool, error) {
	q := fmt.Sprintf(`SELECT asset_id FROM %s`, listingTable)

	st, rows, err := query(s.db, q, nil)
	if err != nil {
		return nil, fmt.Errorf("listedAssetIDs: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	ids := make(map[uint64]bool)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listedAssetIDs: error scanning row: %s", err)
		}
		ids[id] = true
	}
	return ids, nil
}

func (s *sqlStore) DeleteListing(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("deleteListing: error begining db transaction: %s", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, listingTable))
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("deleteListing: error preparing query: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.Exec(id)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("deleteListing: error deleting listing: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("deleteListing: error reading rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("deleteListing: error commiting delete: %w", err)
	}
	return deleted > 0, nil
}

func (s *sqlStore) AppendSaleRecord(ctx context.Context, r *model.SaleRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("appendSaleRecord: error begining db transaction: %s", err)
	}

	values := []interface{}{r.Seller, r.Buyer, r.PriceMicros, r.Timestamp}
	if err := create(tx, historyTable, historyCols, values); err != nil {
		tx.Rollback()
		return fmt.Errorf("appendSaleRecord: error inserting record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("appendSaleRecord: error commiting record: %w", err)
	}
	return nil
}

func (s *sqlStore) SaleHistory(ctx context.Context) ([]model.SaleRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at`, strings.Join(historyCols, ", "), historyTable)

	st, rows, err := query(s.db, q, nil)
	if err != nil {
		return nil, fmt.Errorf("saleHistory: %w", err)
	}
	defer st.Close()
	defer rows.Close()

	var records []model.SaleRecord
	for rows.Next() {
		var r model.SaleRecord
		if err := rows.Scan(&r.Seller, &r.Buyer, &r.PriceMicros, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("saleHistory: error scanning row: %s", err)
		}
		records = append(records, r)
	}
	return records, nil
}

func scanListing(rows *sql.Rows) (*model.ResaleListing, error) {
	var l model.ResaleListing
	err := rows.Scan(
		&l.ID,
		&l.AssetID,
		&l.EventAppID,
		&l.EventTitle,
		&l.Seller,
		&l.AskPriceMicros,
		&l.OriginalPriceMicros,
		&l.MaxResalePriceMicros,
		&l.ListedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanListing: error scanning row: %s", err)
	}
	return &l, nil
}

func create(tx *sql.Tx, table string, cols []string, values []interface{}) error {
	var params []string
	for range cols {
		params = append(params, "?")
	}

	tsql := fmt.Sprintf(`INSERT INTO %s(%s) VALUES (%s);`, table, strings.Join(cols, ", "), strings.Join(params, ", "))

	stmt, err := tx.Prepare(tsql)
	if err != nil {
		return fmt.Errorf("create: error preparing sql query: %s", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(values...); err != nil {
		return fmt.Errorf("create: unable to insert record in %s: %s", table, err)
	}
	return nil
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
