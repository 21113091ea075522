package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/driftbottle/internal/models"
)

// Init opens a GORM connection for the given URL. Supported schemes are
// "sqlite://<path>" and "postgres://<dsn>".
func Init(databaseURL string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch {
	case strings.HasPrefix(databaseURL, "postgres://"):
		dialector = postgres.Open(strings.TrimPrefix(databaseURL, "postgres://"))
		log.Println("Connecting to PostgreSQL database...")
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dsn := strings.TrimPrefix(databaseURL, "sqlite://")
		dialector = sqlite.Open(dsn)
		log.Println("Connecting to SQLite database at", dsn)
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL %q: must start with sqlite:// or postgres://", databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Println("Database connection established.")
	return db, nil
}

// Migrate creates or updates all application tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Record{},
		&models.RecordFile{},
		&models.Comment{},
		&models.Key{},
		&models.Admin{},
	)
}

// Seed inserts a welcome record and comment on a fresh install so the random
// endpoint has something to return before the first real submission is
// approved. It is a no-op when any record already exists.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Record{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	record := models.Record{
		ID:            models.NewID(),
		Text:          "Welcome to driftbottle! This message was seeded on first run so there is always at least one bottle adrift.",
		Title:         "Welcome to driftbottle",
		OriginalText:  "Welcome to driftbottle! This message was seeded on first run so there is always at least one bottle adrift.",
		OriginalTitle: "Welcome to driftbottle",
		UploadTime:    now,
		UploaderIP:    "127.0.0.1",
		Status:        models.StatusApproved,
		Carrier:       0,
		Fantasy:       0,
	}
	if err := db.Create(&record).Error; err != nil {
		return err
	}

	comment := models.Comment{
		ID:          models.NewID(),
		RecordID:    record.ID,
		Content:     "This is a seeded comment.",
		CommenterIP: "127.0.0.1",
		CommentTime: now,
		Status:      models.StatusApproved,
	}
	if err := db.Create(&comment).Error; err != nil {
		return err
	}

	log.Println("Seeded welcome record", record.ID)
	return nil
}
