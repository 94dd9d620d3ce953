// Package storage persists guild, command and music configuration together
// with per-guild playlists in a SQLite database.
package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrVersionConflict is returned when a playlist is saved over a newer version.
var ErrVersionConflict = errors.New("stored playlist version has changed")

// Client wraps the gorm database handle.
type Client struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string) (*Client, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	client := &Client{db: db}
	if err := client.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	slog.Info("opened database", "path", path)

	return client, nil
}

// migrate creates/updates tables based on struct definitions.
func (c *Client) migrate() error {
	err := c.db.AutoMigrate(
		&GuildSettings{},
		&CommandConfig{},
		&MusicConfig{},
		&Playlist{},
		&PlaylistItem{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
