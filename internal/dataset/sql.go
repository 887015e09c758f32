package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sales-assistant/internal/models"
)

const DefaultTable = "sales"

// saleRecord is the column layout both SQL sources read. Every column is
// scanned as text so cleaning follows the same rules as the file sources.
type saleRecord struct {
	PurchaseDate   sql.NullString
	SellingPrice   sql.NullString
	CountryName    sql.NullString
	City           sql.NullString
	RegionName     sql.NullString
	PlanName       sql.NullString
	Source         sql.NullString
	PaymentGateway sql.NullString
}

func (r saleRecord) raw() rawRow {
	var row rawRow
	row[fieldDate] = r.PurchaseDate.String
	row[fieldPrice] = r.SellingPrice.String
	row[fieldCountry] = r.CountryName.String
	row[fieldCity] = r.City.String
	row[fieldRegion] = r.RegionName.String
	row[fieldPlan] = r.PlanName.String
	row[fieldSource] = r.Source.String
	row[fieldGateway] = r.PaymentGateway.String
	return row
}

func cleanRecords(records []saleRecord) []models.Transaction {
	rows := make([]models.Transaction, 0, len(records))
	for _, r := range records {
		if tx, ok := r.raw().transaction(parseDate); ok {
			rows = append(rows, tx)
		}
	}
	return dedupe(rows)
}

// PostgresSource reads the sales table from PostgreSQL.
type PostgresSource struct {
	DSN   string
	Table string
}

func NewPostgresSource(dsn, table string) *PostgresSource {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresSource{DSN: dsn, Table: table}
}

func (s *PostgresSource) Name() string { return "postgres:" + s.Table }

func (s *PostgresSource) Load(ctx context.Context) ([]models.Transaction, error) {
	db, err := sql.Open("postgres", s.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	query := fmt.Sprintf(`SELECT purchase_date::text, selling_price::text, country_name, city,
		region_name, plan_name, source, payment_gateway FROM %s`, pq.QuoteIdentifier(s.Table))
	rs, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rs.Close()

	var records []saleRecord
	for rs.Next() {
		var r saleRecord
		if err := rs.Scan(&r.PurchaseDate, &r.SellingPrice, &r.CountryName, &r.City,
			&r.RegionName, &r.PlanName, &r.Source, &r.PaymentGateway); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return cleanRecords(records), nil
}

// SQLiteSource reads the sales table from a SQLite file through gorm.
type SQLiteSource struct {
	Path  string
	Table string
}

func NewSQLiteSource(path, table string) *SQLiteSource {
	if table == "" {
		table = DefaultTable
	}
	return &SQLiteSource{Path: path, Table: table}
}

func (s *SQLiteSource) Name() string { return "sqlite:" + s.Path }

func (s *SQLiteSource) Load(ctx context.Context) ([]models.Transaction, error) {
	db, err := gorm.Open(sqlite.Open(s.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var records []saleRecord
	if err := db.WithContext(ctx).Table(s.Table).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	return cleanRecords(records), nil
}
