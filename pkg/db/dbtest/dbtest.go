// Package dbtest opens throwaway SQLite databases migrated with the ledger models.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/phoneshop-backend/pkg/db"
	"github.com/angelmondragon/phoneshop-backend/pkg/db/models"
)

// Open returns a client over a private in-memory database. The pool holds a
// single connection so concurrent transactions serialize the way row locks
// would on Postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := "file:phoneshop_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderLine{},
		&models.PaymentCallback{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db.NewFromConn(conn)
}

// SeedProduct inserts a product with the given name.
func SeedProduct(t testing.TB, client *db.Client, name string) models.Product {
	t.Helper()
	product := models.Product{Name: name, IsActive: true}
	if err := client.DB().Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// SeedVariant inserts a variant priced at price with stock units on hand.
func SeedVariant(t testing.TB, client *db.Client, productID *int64, price string, stock int) models.ProductVariant {
	t.Helper()
	variant := models.ProductVariant{
		ProductID:     productID,
		Color:         "black",
		Ram:           "8GB",
		Rom:           "256GB",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	if err := client.DB().Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

// Stock reloads the current stock counter of a variant.
func Stock(t testing.TB, client *db.Client, variantID int64) int {
	t.Helper()
	var variant models.ProductVariant
	if err := client.DB().First(&variant, variantID).Error; err != nil {
		t.Fatalf("load variant %d: %v", variantID, err)
	}
	return variant.StockQuantity
}

// OutboxEvents returns the outbox rows of an order in insertion order.
func OutboxEvents(t testing.TB, client *db.Client, orderID int64) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	if err := client.DB().Where("order_id = ?", orderID).Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load outbox events for order %d: %v", orderID, err)
	}
	return rows
}
