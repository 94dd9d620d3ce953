package utility

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/bot"
	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/modules/utility/application"
	"github.com/sglre6355/jukebox/internal/modules/utility/presentation"
)

func init() {
	bot.Register(&UtilityModule{})
}

// UtilityModule provides the ping command and the 🏓 reply.
type UtilityModule struct {
	pingHandler *presentation.PingHandler
	pongHandler *presentation.PongHandler
}

// Name returns the module name.
func (m *UtilityModule) Name() string {
	return "utility"
}

// Commands returns the text commands for this module.
func (m *UtilityModule) Commands() []*command.Command {
	return []*command.Command{
		{
			Key:         "ping",
			Priority:    1,
			Permissions: discordgo.PermissionSendMessages,
			Aliases: map[string][]string{
				"en": {"ping"},
				"ru": {"пинг"},
			},
			Handler: m.pingHandler.Handle,
		},
	}
}

// EventHandlers returns the event handlers for this module.
func (m *UtilityModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		m.pongHandler.HandleMessage,
	}
}

// Init initializes the module.
func (m *UtilityModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil || deps.Session.State == nil || deps.Session.State.User == nil {
		return errors.New("utility module requires an open Discord session")
	}
	selfID, err := snowflake.Parse(deps.Session.State.User.ID)
	if err != nil {
		return fmt.Errorf("failed to parse bot ID: %w", err)
	}

	m.pingHandler = presentation.NewPingHandler(
		application.NewPingInteractor(deps.Session.HeartbeatLatency),
	)
	m.pongHandler = presentation.NewPongHandler(application.NewPongInteractor(selfID))
	return nil
}

// Shutdown cleans up module resources.
func (m *UtilityModule) Shutdown() error {
	return nil
}
