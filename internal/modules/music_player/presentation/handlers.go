package presentation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sglre6355/jukebox/internal/command"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorInfo    = 0x3498DB
)

// Handlers holds the text command handlers of the music player.
type Handlers struct {
	playback     *usecases.PlaybackService
	voiceChannel *usecases.VoiceChannelService
	trackLoader  *usecases.TrackLoaderService
}

// NewHandlers creates new Handlers.
func NewHandlers(
	playback *usecases.PlaybackService,
	voiceChannel *usecases.VoiceChannelService,
	trackLoader *usecases.TrackLoaderService,
) *Handlers {
	return &Handlers{
		playback:     playback,
		voiceChannel: voiceChannel,
		trackLoader:  trackLoader,
	}
}

// Available reports whether the invoking member may use music commands.
func (h *Handlers) Available(ctx context.Context, inv *command.Invocation) bool {
	author := inv.Message.Author
	return h.playback.HasAccess(ctx, usecases.AccessInput{
		GuildID:    inv.Message.GuildID,
		RoleIDs:    author.RoleIDs,
		Privileged: author.Privileged,
	})
}

// HandlePlay handles the play command.
func (h *Handlers) HandlePlay(ctx context.Context, inv *command.Invocation) error {
	query := inv.Args
	if query == "" {
		return command.NewValidationError("Specify a link or a search query.")
	}

	msg := inv.Message
	if err := h.voiceChannel.RequireSameChannel(ctx, msg.GuildID, msg.Author.ID); err != nil {
		return commandError(err)
	}

	loaded, err := h.trackLoader.LoadTracks(ctx, usecases.LoadTracksInput{Query: query})
	if err != nil {
		if errors.Is(err, usecases.ErrNoResults) {
			return command.NewValidationError("No results found for **%s**.", query)
		}
		return commandError(err)
	}

	output, err := h.playback.Play(ctx, usecases.PlayInput{
		GuildID:       msg.GuildID,
		TextChannelID: msg.ChannelID,
		Member:        member(inv),
		Tracks:        loaded.Tracks,
	})
	if err != nil {
		return commandError(err)
	}

	if loaded.IsPlaylist {
		return inv.Reply(command.Reply{
			Description: fmt.Sprintf(
				"Loaded **%s** with %d tracks.",
				loaded.PlaylistName,
				len(output.Requests),
			),
			Color: colorSuccess,
		})
	}
	return nil
}

// HandleQueue handles the queue command.
func (h *Handlers) HandleQueue(ctx context.Context, inv *command.Invocation) error {
	page := 1
	if inv.Args != "" {
		n, err := strconv.Atoi(inv.Args)
		if err != nil || n < 1 {
			return command.NewValidationError("Select a page number starting from 1.")
		}
		page = n
	}

	output, err := h.playback.Queue(ctx, usecases.QueueInput{
		GuildID: inv.Message.GuildID,
		Page:    page,
	})
	if err != nil {
		return commandError(err)
	}

	return inv.Reply(queueReply(output))
}

// HandleSkip handles the skip command.
func (h *Handlers) HandleSkip(ctx context.Context, inv *command.Invocation) error {
	if err := h.requireSameChannel(ctx, inv); err != nil {
		return err
	}

	output, err := h.playback.Skip(ctx, usecases.SkipInput{
		GuildID: inv.Message.GuildID,
		Member:  member(inv),
	})
	if err != nil {
		return commandError(err)
	}

	return inv.Reply(command.Reply{
		Description: fmt.Sprintf("Skipped %s.", trackLink(output.Skipped.Track())),
		Color:       colorSuccess,
	})
}

// HandleStop handles the stop command.
func (h *Handlers) HandleStop(ctx context.Context, inv *command.Invocation) error {
	if err := h.requireSameChannel(ctx, inv); err != nil {
		return err
	}

	stopped := h.playback.Stop(ctx, usecases.StopInput{
		GuildID: inv.Message.GuildID,
		Member:  member(inv),
	})
	if !stopped {
		return commandError(usecases.ErrNotPlaying)
	}

	return inv.Reply(command.Reply{
		Description: "Stopped playback.",
		Color:       colorSuccess,
	})
}

// HandlePause handles the pause command.
func (h *Handlers) HandlePause(ctx context.Context, inv *command.Invocation) error {
	if err := h.requireSameChannel(ctx, inv); err != nil {
		return err
	}
	if err := h.playback.Pause(ctx, inv.Message.GuildID); err != nil {
		return commandError(err)
	}
	return inv.React(command.EmojiSuccess)
}

// HandleResume handles the resume command.
func (h *Handlers) HandleResume(ctx context.Context, inv *command.Invocation) error {
	if err := h.requireSameChannel(ctx, inv); err != nil {
		return err
	}
	if err := h.playback.Resume(ctx, inv.Message.GuildID); err != nil {
		return commandError(err)
	}
	return inv.React(command.EmojiSuccess)
}

// HandleShuffle handles the shuffle command.
func (h *Handlers) HandleShuffle(ctx context.Context, inv *command.Invocation) error {
	if err := h.requireSameChannel(ctx, inv); err != nil {
		return err
	}

	shuffled, err := h.playback.Shuffle(ctx, inv.Message.GuildID)
	if err != nil {
		return commandError(err)
	}
	if !shuffled {
		return command.NewValidationError("There are not enough tracks in the queue to shuffle.")
	}

	return inv.Reply(command.Reply{
		Description: "Shuffled the queue.",
		Color:       colorSuccess,
	})
}

// HandleRemove handles the remove command.
func (h *Handlers) HandleRemove(ctx context.Context, inv *command.Invocation) error {
	position, err := strconv.Atoi(inv.Args)
	if err != nil || position < 1 {
		return command.NewValidationError("Specify the position of the track to remove.")
	}
	if err := h.requireSameChannel(ctx, inv); err != nil {
		return err
	}

	removed, err := h.playback.Remove(ctx, usecases.RemoveInput{
		GuildID:  inv.Message.GuildID,
		Position: position,
	})
	if errors.Is(err, usecases.ErrInvalidPosition) {
		return command.NewValidationError("There is no track at position %d.", position)
	}
	if err != nil {
		return commandError(err)
	}

	return inv.Reply(command.Reply{
		Description: fmt.Sprintf("Removed %s.", trackLink(removed.Track())),
		Color:       colorSuccess,
	})
}

// HandleRepeat handles the repeat command. Without an argument the repeat
// mode cycles to the next one.
func (h *Handlers) HandleRepeat(ctx context.Context, inv *command.Invocation) error {
	var mode *domain.RepeatMode
	if inv.Args != "" {
		parsed, ok := domain.ParseRepeatMode(strings.ToLower(inv.Args))
		if !ok {
			return command.NewValidationError("Unknown repeat mode. Use `none`, `current` or `queue`.")
		}
		mode = &parsed
	}

	next, err := h.playback.SetRepeat(ctx, inv.Message.GuildID, mode)
	if err != nil {
		return commandError(err)
	}

	var description string
	switch next {
	case domain.RepeatCurrent:
		description = "Now repeating the current track."
	case domain.RepeatQueue:
		description = "Now repeating the queue."
	default:
		description = "Repeat disabled."
	}

	return inv.Reply(command.Reply{
		Description: next.Emoji() + " " + description,
		Color:       colorSuccess,
	})
}

// HandleVolume handles the volume command. Without an argument the current
// volume is shown.
func (h *Handlers) HandleVolume(ctx context.Context, inv *command.Invocation) error {
	guildID := inv.Message.GuildID

	if inv.Args == "" {
		volume, err := h.playback.Volume(ctx, guildID)
		if err != nil {
			return commandError(err)
		}
		return inv.Reply(command.Reply{
			Description: fmt.Sprintf("Volume is **%d%%**.", volume),
			Color:       colorInfo,
		})
	}

	volume, err := strconv.Atoi(strings.TrimSuffix(inv.Args, "%"))
	if err != nil {
		return volumeError()
	}
	if err := h.playback.SetVolume(ctx, guildID, volume); err != nil {
		if errors.Is(err, usecases.ErrInvalidVolume) {
			return volumeError()
		}
		return commandError(err)
	}

	return inv.Reply(command.Reply{
		Description: fmt.Sprintf("Volume set to **%d%%**.", volume),
		Color:       colorSuccess,
	})
}

func (h *Handlers) requireSameChannel(ctx context.Context, inv *command.Invocation) error {
	msg := inv.Message
	if err := h.voiceChannel.RequireSameChannel(ctx, msg.GuildID, msg.Author.ID); err != nil {
		return commandError(err)
	}
	return nil
}

func volumeError() error {
	return command.NewValidationError(
		"Volume must be a number from %d to %d.",
		usecases.MinVolume,
		usecases.MaxVolume,
	)
}

// commandError maps use case errors onto the dispatcher's error taxonomy.
// Errors it does not know are returned unchanged and treated as unexpected.
func commandError(err error) error {
	switch {
	case errors.Is(err, usecases.ErrNotPlaying),
		errors.Is(err, usecases.ErrUserNotInVoice),
		errors.Is(err, usecases.ErrNotInSameChannel),
		errors.Is(err, usecases.ErrAlreadyPaused),
		errors.Is(err, usecases.ErrNotPaused),
		errors.Is(err, usecases.ErrNoResults),
		errors.Is(err, usecases.ErrQueueEmpty),
		errors.Is(err, usecases.ErrInvalidPosition),
		errors.Is(err, usecases.ErrInvalidVolume):
		return command.NewValidationError(sentence(err))

	case errors.Is(err, usecases.ErrNoVoiceChannel),
		errors.Is(err, ports.ErrConnection):
		return command.NewDomainError(sentence(err), err)

	case errors.Is(err, usecases.ErrLoadFailed):
		return command.NewDomainError("Failed to load the track.", err)

	case errors.Is(err, application.ErrRegistryShutdown):
		return command.NewDomainError("The player is shutting down.", err)

	default:
		return err
	}
}

// sentence renders the outermost sentinel message of err for display.
func sentence(err error) string {
	message := err.Error()
	if i := strings.Index(message, ": "); i > 0 {
		message = message[:i]
	}
	r, size := utf8.DecodeRuneInString(message)
	return string(unicode.ToUpper(r)) + message[size:] + "."
}

func member(inv *command.Invocation) domain.Member {
	author := inv.Message.Author
	return domain.Member{ID: author.ID, DisplayName: author.DisplayName}
}

// trackLink formats a track as a markdown link when it has a URI.
func trackLink(track *domain.Track) string {
	if track.URI != "" {
		return fmt.Sprintf("[%s](%s)", track.DisplayTitle(), track.URI)
	}
	return fmt.Sprintf("**%s**", track.DisplayTitle())
}

func queueReply(output *usecases.QueueOutput) command.Reply {
	var sb strings.Builder

	sb.WriteString("### Now Playing\n")
	current := output.Current.Track()
	state := ""
	if output.Paused {
		state = " (paused)"
	}
	fmt.Fprintf(&sb, "%s - %s%s\n", trackLink(current), current.DisplayAuthor(), state)

	sb.WriteString("### Up Next\n")
	if output.TotalCount == 0 {
		sb.WriteString("Queue is empty.\n")
	}
	for i, req := range output.Requests {
		writeTrackLine(&sb, output.Offset+i+1, req.Track())
	}

	return command.Reply{
		Title:       "Queue " + output.RepeatMode.Emoji(),
		Description: sb.String(),
		Color:       colorInfo,
		Footer: fmt.Sprintf(
			"Page %d/%d | %d tracks | %s",
			output.Page,
			output.TotalPages,
			output.TotalCount,
			domain.FormatDuration(output.Duration),
		),
	}
}

// writeTrackLine writes a single track line to the string builder.
// Escapes period to prevent Discord markdown list formatting.
func writeTrackLine(sb *strings.Builder, displayIndex int, track *domain.Track) {
	fmt.Fprintf(
		sb,
		"%d\\. %s - %s (%s)\n",
		displayIndex,
		trackLink(track),
		track.DisplayAuthor(),
		track.FormattedDuration(),
	)
}
