package presentation

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/modules/utility/application"
)

// PingHandler handles the ping command.
type PingHandler struct {
	interactor *application.PingInteractor
}

// NewPingHandler creates a new PingHandler.
func NewPingHandler(interactor *application.PingInteractor) *PingHandler {
	return &PingHandler{
		interactor: interactor,
	}
}

// Handle processes the ping command and sends the response.
func (h *PingHandler) Handle(_ context.Context, inv *command.Invocation) error {
	result := h.interactor.Execute()

	return inv.Reply(command.Reply{
		Description: result.Message(),
		Plain:       true,
	})
}

// MessageSender sends plain text messages.
type MessageSender interface {
	ChannelMessageSend(
		channelID string,
		content string,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

// PongHandler handles messages containing the 🏓 emoji.
type PongHandler struct {
	interactor *application.PongInteractor
}

// NewPongHandler creates a new PongHandler.
func NewPongHandler(interactor *application.PongInteractor) *PongHandler {
	return &PongHandler{
		interactor: interactor,
	}
}

// HandleMessage is the discordgo event handler for MessageCreate events.
func (h *PongHandler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.handle(s, m.Message)
}

func (h *PongHandler) handle(sender MessageSender, m *discordgo.Message) {
	if m.Author == nil {
		return
	}
	authorID, err := snowflake.Parse(m.Author.ID)
	if err != nil {
		return
	}

	result := h.interactor.Execute(authorID, m.Author.Bot, m.Content)
	if !result.ShouldRespond {
		return
	}
	if _, err := sender.ChannelMessageSend(m.ChannelID, result.Response); err != nil {
		slog.Error("failed to send message", "channel", m.ChannelID, "error", err)
	}
}
