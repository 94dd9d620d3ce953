package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoadOrCreatePlaylist returns the guild's playlist with the given ID and its
// items in order. A new playlist is created when id is zero or not found.
func (c *Client) LoadOrCreatePlaylist(
	ctx context.Context,
	guildID snowflake.ID,
	id uint,
) (*Playlist, error) {
	db := c.db.WithContext(ctx)

	if id != 0 {
		var playlist Playlist
		err := db.
			Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
			Where("id = ? AND guild_id = ?", id, guildID).
			First(&playlist).Error
		if err == nil {
			return &playlist, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load playlist: %w", err)
		}
	}

	playlist := &Playlist{
		UUID:    uuid.NewString(),
		GuildID: guildID,
		Version: 1,
	}
	if err := db.Create(playlist).Error; err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	return playlist, nil
}

// SavePlaylist writes items in order and bumps the playlist version. It fails
// with ErrVersionConflict when the stored version is not version.
func (c *Client) SavePlaylist(
	ctx context.Context,
	id uint,
	version int,
	items []PlaylistItem,
) (int, error) {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Playlist{}).
			Where("id = ? AND version = ?", id, version).
			Update("version", gorm.Expr("version + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		for i := range items {
			items[i].PlaylistID = id
			items[i].Position = i
			if err := tx.Save(&items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrVersionConflict) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save playlist: %w", err)
	}
	return version + 1, nil
}

// DeletePlaylistItems removes items by ID.
func (c *Client) DeletePlaylistItems(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.db.WithContext(ctx).Delete(&PlaylistItem{}, ids).Error; err != nil {
		return fmt.Errorf("failed to delete playlist items: %w", err)
	}
	return nil
}
