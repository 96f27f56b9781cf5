package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(255) NOT NULL,
    full_name VARCHAR(255) NOT NULL DEFAULT '',
    total_reports INT NOT NULL DEFAULT 0,
    resolved_reports INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    PRIMARY KEY (id)
)`,
	`CREATE TABLE IF NOT EXISTS reports (
    id VARCHAR(36) NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    title VARCHAR(512) NOT NULL,
    description TEXT,
    category VARCHAR(64) NOT NULL DEFAULT 'other',
    priority VARCHAR(16) NOT NULL DEFAULT 'medium',
    media_urls TEXT,
    audio_url VARCHAR(1024) NULL,
    latitude DOUBLE NULL,
    longitude DOUBLE NULL,
    address VARCHAR(512) NOT NULL DEFAULT '',
    department VARCHAR(128) NOT NULL DEFAULT 'General',
    is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    resolved_at TIMESTAMP NULL,
    PRIMARY KEY (id),
    INDEX idx_user_id (user_id),
    INDEX idx_coords (latitude, longitude)
)`,
}

// InitSchema creates the necessary database tables.
func InitSchema(db *sql.DB) error {
	log.Info("Initializing database schema...")

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	log.Info("Database schema initialized successfully")
	return nil
}
