package storage

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Cooldown modes as stored in CommandConfig.CooldownMode.
const (
	CooldownModeNone  = "none"
	CooldownModeGuild = "guild"
	CooldownModeUser  = "user"
)

// GuildSettings holds the command-level settings of a guild.
type GuildSettings struct {
	GuildID       snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Prefix        string
	CommandLocale string
	UpdatedAt     time.Time
}

// CommandConfig holds the per-guild configuration of one command.
// A missing row means the command runs with its defaults.
type CommandConfig struct {
	ID         uint         `gorm:"primaryKey"`
	GuildID    snowflake.ID `gorm:"uniqueIndex:idx_command_configs_guild_key"`
	CommandKey string       `gorm:"uniqueIndex:idx_command_configs_guild_key;not null"`

	Disabled             bool
	AllowedChannels      []snowflake.ID `gorm:"serializer:json"`
	IgnoredChannels      []snowflake.ID `gorm:"serializer:json"`
	AllowedRoles         []snowflake.ID `gorm:"serializer:json"`
	IgnoredRoles         []snowflake.ID `gorm:"serializer:json"`
	CooldownMode         string         `gorm:"not null;default:'none'"`
	CooldownSeconds      int
	CooldownIgnoredRoles []snowflake.ID `gorm:"serializer:json"`
	DeleteSource         bool
}

// MusicConfig holds the audio settings of a guild.
type MusicConfig struct {
	GuildID          snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	AllowedRoles     []snowflake.ID `gorm:"serializer:json"`
	ChannelID        snowflake.ID
	UserJoinDisabled bool
	Volume           *int // nil until first saved
	UpdatedAt        time.Time
}

// Playlist is the stored queue of a guild.
type Playlist struct {
	ID        uint         `gorm:"primaryKey"`
	UUID      string       `gorm:"uniqueIndex;size:36;not null"`
	GuildID   snowflake.ID `gorm:"index"`
	Version   int          `gorm:"not null"`
	Items     []PlaylistItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlaylistItem is one track of a playlist.
type PlaylistItem struct {
	ID          uint `gorm:"primaryKey"`
	PlaylistID  uint `gorm:"index"`
	Position    int
	Encoded     string
	Identifier  string
	Title       string
	Author      string
	LengthMs    int64
	URI         string
	ArtworkURL  string
	SourceName  string
	IsStream    bool
	RequesterID snowflake.ID
}
