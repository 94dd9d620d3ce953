package presentation

import (
	_ "embed"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/jukebox/internal/command"
)

//go:embed commands.yaml
var aliasesYAML []byte

// Priority of the first music command; the rest follow in listing order.
const basePriority = 100

const replyPermissions = discordgo.PermissionSendMessages | discordgo.PermissionEmbedLinks

// Commands returns the text commands of the music player module.
func Commands(h *Handlers) ([]*command.Command, error) {
	aliases, err := command.ParseAliases(aliasesYAML)
	if err != nil {
		return nil, err
	}

	handlers := []struct {
		key     string
		handler command.Handler
	}{
		{"play", h.HandlePlay},
		{"queue", h.HandleQueue},
		{"skip", h.HandleSkip},
		{"stop", h.HandleStop},
		{"pause", h.HandlePause},
		{"resume", h.HandleResume},
		{"shuffle", h.HandleShuffle},
		{"remove", h.HandleRemove},
		{"repeat", h.HandleRepeat},
		{"volume", h.HandleVolume},
	}

	commands := make([]*command.Command, 0, len(handlers))
	for i, entry := range handlers {
		localized, ok := aliases[entry.key]
		if !ok {
			return nil, fmt.Errorf("no aliases for command %q", entry.key)
		}
		commands = append(commands, &command.Command{
			Key:         entry.key,
			Priority:    basePriority + i,
			Permissions: replyPermissions,
			Aliases:     localized,
			Available:   h.Available,
			Handler:     entry.handler,
		})
	}
	return commands, nil
}
