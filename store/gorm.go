package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type kvEntry struct {
	Key       string    `gorm:"column:k;primaryKey;size:191" json:"key"`
	Value     string    `gorm:"column:v;type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (kvEntry) TableName() string {
	return "assistant_kv"
}

// Gorm persists keys through a gorm-managed database: a local sqlite file
// for single-instance widgets, or MySQL when several instances must share
// the visitor identities.
type Gorm struct {
	db *gorm.DB
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// gormLogLevel: verbose in development
func gormLogLevel() logger.Interface {
	if strings.ToLower(os.Getenv("ENV")) == "development" {
		return logger.Default.LogMode(logger.Info)
	}
	return logger.Default.LogMode(logger.Silent)
}

// openRetry retries the open with exponential backoff so a briefly
// unavailable database does not kill startup.
func openRetry(dial gorm.Dialector) (*gorm.DB, error) {
	var db *gorm.DB
	var err error
	backoff := time.Second
	for attempt := 0; attempt < 5; attempt++ {
		db, err = gorm.Open(dial, &gorm.Config{Logger: gormLogLevel()})
		if err == nil {
			return db, nil
		}
		log.Printf("[Store] open failed (attempt %d): %v", attempt+1, err)
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, err
}

// OpenGorm opens (creating if needed) the sqlite file at path and migrates
// the kv table.
func OpenGorm(path string) (*Gorm, error) {
	db, err := openRetry(sqlite.Open(path))
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer; keep the pool at one connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, err
	}
	return &Gorm{db: db}, nil
}

// OpenGormMySQL connects to MySQL using DB_DSN, or a DSN composed from
// DB_HOST, DB_PORT, DB_USER, DB_PASS, DB_NAME and DB_PARAMS.
func OpenGormMySQL() (*Gorm, error) {
	host := getenv("DB_HOST", "127.0.0.1")
	port := getenv("DB_PORT", "3306")
	user := getenv("DB_USER", "root")
	pass := getenv("DB_PASS", "")
	name := getenv("DB_NAME", "widget")
	params := getenv("DB_PARAMS", "charset=utf8mb4&parseTime=True&loc=Local")

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", user, pass, host, port, name, params)
	}
	safeDSN := dsn
	if pass != "" {
		safeDSN = strings.Replace(safeDSN, pass, "******", 1)
	}
	log.Printf("[Store] using DSN: %s", safeDSN)

	db, err := openRetry(gormmysql.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := atoi(getenv("DB_MAX_OPEN_CONNS", "25"))
	maxIdle := atoi(getenv("DB_MAX_IDLE_CONNS", "25"))
	maxLifetimeSec := atoi(getenv("DB_CONN_MAX_LIFETIME", "3600"))
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(maxLifetimeSec) * time.Second)

	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, err
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Get(ctx context.Context, key string) (string, error) {
	var e kvEntry
	err := g.db.WithContext(ctx).First(&e, "k = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (g *Gorm) Set(ctx context.Context, key, value string) error {
	e := kvEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "k"}},
			DoUpdates: clause.AssignmentColumns([]string{"v", "updated_at"}),
		}).
		Create(&e).Error
}

func (g *Gorm) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Delete(&kvEntry{}, "k = ?", key).Error
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
