// Package storage implements the persistence ports on GORM over MySQL.
// It owns the two transactional hot spots of the system: the capacity-safe
// registration insert and the webhook dedup insert.
package storage

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

const maxConnectRetries = 5
const connectRetryDelay = 5 * time.Second

// Open connects to MySQL with a retry loop and migrates the schema.
func Open(user, password, host, port, name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		user, password, host, port, name)

	var db *gorm.DB
	var err error
	for i := 0; i < maxConnectRetries; i++ {
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			break
		}
		log.Printf("storage: failed to connect (try %d/%d): %v", i+1, maxConnectRetries, err)
		if i < maxConnectRetries-1 {
			time.Sleep(connectRetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.Member{},
		&domain.Event{},
		&domain.EventRegistration{},
		&domain.Subscription{},
		&domain.Payment{},
		&domain.WebhookEvent{},
		&domain.LedgerEntry{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

// translateNotFound maps the driver's not-found to the domain sentinel.
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
