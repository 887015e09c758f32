package dataset

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sales-assistant/internal/models"
)

const sampleCSV = `PurchaseDate,SellingPrice,countryname,City,regionname,PlanName,source,payment_gateway
2023-06-15,100,France,Paris,Europe,Gold,web,stripe
20/06/2023,50.50,India,Delhi,Asia,Basic,app,razorpay
2023-06-15,100,France,Paris,Europe,Gold,web,stripe
not a date,10,Peru,Lima,\N,Basic,web,null
2023-07-01,,Spain,Madrid,Europe,Gold,web,stripe
2023-07-02,abc,Spain,Madrid,Europe,Gold,web,stripe
2023-07-03,-5,Spain,Madrid,Europe,Gold,web,stripe
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSourceLoad(t *testing.T) {
	src := NewCSVSource(writeFile(t, "sales.csv", sampleCSV))

	rows, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, int64(2), src.Dropped())

	assert.Equal(t, time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC), rows[0].PurchaseDate)
	assert.Equal(t, "100.00", rows[0].Price().StringFixed(2))
	assert.Equal(t, "France", rows[0].Country)
	assert.Equal(t, "stripe", rows[0].PaymentGateway)

	assert.Equal(t, time.Date(2023, 6, 20, 0, 0, 0, 0, time.UTC), rows[1].PurchaseDate)
	assert.Equal(t, "50.50", rows[1].Price().StringFixed(2))

	assert.False(t, rows[2].HasDate())
	assert.Equal(t, "", rows[2].Region)
	assert.Equal(t, "", rows[2].PaymentGateway)

	assert.False(t, rows[3].Priced())
	assert.Equal(t, "Spain", rows[3].Country)
}

func TestCSVSourceBatches(t *testing.T) {
	var b strings.Builder
	b.WriteString("purchase_date,selling_price,country_name\n")
	for i := range batchSize + 5 {
		b.WriteString("2023-01-01,")
		b.WriteString(strings.Repeat("1", 1+i%3))
		b.WriteString(",C")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString("-")
		b.WriteString(time.Duration(i).String())
		b.WriteString("\n")
	}

	rows, err := NewCSVSource(writeFile(t, "big.csv", b.String())).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, batchSize+5)
	assert.Equal(t, "C-0s", rows[0].Country)
}

func TestCSVSourceErrors(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "missing.csv")).Load(context.Background())
	assert.Error(t, err)

	_, err = NewCSVSource(writeFile(t, "empty.csv", "")).Load(context.Background())
	assert.Error(t, err)

	_, err = NewCSVSource(writeFile(t, "noprice.csv", "purchase_date,country\n2023-01-01,France\n")).Load(context.Background())
	assert.ErrorIs(t, err, ErrMissingColumn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewCSVSource(writeFile(t, "ok.csv", sampleCSV)).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestXLSXSourceLoad(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"PurchaseDate", "SellingPrice", "countryname", "City", "regionname", "PlanName"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"2023-06-15", 100, "France", "Paris", "Europe", "Gold"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{45097, "50.5", "India", "Delhi", "Asia", "Basic"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"2023-06-21", "", "Peru", "Lima", "undefined", "Basic"}))
	path := filepath.Join(t.TempDir(), "sales.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows, err := NewXLSXSource(path, "").Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "France", rows[0].Country)
	assert.Equal(t, "100.00", rows[0].Price().StringFixed(2))
	assert.Equal(t, time.Date(2023, 6, 20, 0, 0, 0, 0, time.UTC), rows[1].PurchaseDate)
	assert.Equal(t, "50.50", rows[1].Price().StringFixed(2))
	assert.False(t, rows[2].Priced())
	assert.Equal(t, "", rows[2].Region)
}

func TestSQLiteSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Table(DefaultTable).AutoMigrate(&saleRecord{}))

	str := func(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
	records := []saleRecord{
		{PurchaseDate: str("2023-06-15"), SellingPrice: str("100"), CountryName: str("France"), City: str("Paris")},
		{PurchaseDate: str("2023-06-20"), SellingPrice: str("50"), CountryName: str("India")},
		{PurchaseDate: str("2023-06-21"), CountryName: str("Peru")},
	}
	require.NoError(t, db.Table(DefaultTable).Create(&records).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rows, err := NewSQLiteSource(path, "").Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Paris", rows[0].City)
	assert.Equal(t, "150.00", rows[0].Price().Add(rows[1].Price()).StringFixed(2))
	assert.False(t, rows[2].Priced())

	_, err = NewSQLiteSource(path, "missing_table").Load(context.Background())
	assert.Error(t, err)
}

func TestCachedSource(t *testing.T) {
	path := writeFile(t, "sales.csv", sampleCSV)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	inner := &fakeSource{rows: []models.Transaction{priced("France", "10"), {Country: "India"}}}
	src := &CachedSource{Source: inner, Path: path, Dir: cacheDir}

	first, err := src.Load(context.Background())
	require.NoError(t, err)
	second, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), inner.calls.Load())
	require.Len(t, second, 2)
	assert.Equal(t, first[0].Country, second[0].Country)
	assert.True(t, first[0].Price().Equal(second[0].Price()))
	assert.False(t, second[1].Priced())

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	_, err = src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    string
		wantErr bool
	}{
		{"csv by extension", Options{Path: "data/sales.csv"}, "csv:data/sales.csv", false},
		{"xlsx by extension", Options{Path: "sales.XLSX"}, "xlsx:sales.XLSX", false},
		{"sqlite driver", Options{Driver: "sqlite", Path: "sales.db"}, "sqlite:sales.db", false},
		{"postgres", Options{Driver: "postgres", DSN: "postgres://localhost/sales"}, "postgres:sales", false},
		{"cached csv", Options{Path: "sales.csv", CacheDir: ".cache"}, "csv:sales.csv", false},
		{"postgres without dsn", Options{Driver: "postgres"}, "", true},
		{"unknown", Options{Path: "sales.json"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSource(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Name())
		})
	}
}
