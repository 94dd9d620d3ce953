package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebox/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebox/internal/modules/music_player/domain"
)

// Embed colors.
const (
	colorRed  = 0xE74C3C
	colorGray = 0x95A5A6
)

// Embed author lines of the now-playing message.
const (
	authorNowPlaying = "Now Playing"
	authorPaused     = "Paused"
	authorPlayed     = "Played"
)

// MessageSender is the subset of the Discord session the notifier needs.
type MessageSender interface {
	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	ChannelMessageEditEmbed(
		channelID, messageID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

// nowPlayingMessage is the message rendered for a guild's current request.
type nowPlayingMessage struct {
	channelID snowflake.ID
	messageID snowflake.ID
	request   *domain.TrackRequest
	embed     *discordgo.MessageEmbed
}

// Notifier renders playback notifications into Discord channels.
type Notifier struct {
	sender     MessageSender
	httpClient *http.Client

	mu         sync.Mutex
	nowPlaying map[snowflake.ID]*nowPlayingMessage
}

// Ensure Notifier implements ports.Renderer.
var _ ports.Renderer = (*Notifier)(nil)

// NewNotifier creates a new Notifier.
func NewNotifier(sender MessageSender) *Notifier {
	return &Notifier{
		sender: sender,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		nowPlaying: make(map[snowflake.ID]*nowPlayingMessage),
	}
}

// Notify renders n. Failures are logged and never returned.
func (n *Notifier) Notify(ctx context.Context, note ports.Notification) {
	var err error
	switch note.Kind {
	case ports.NotifyTracksAdded:
		err = n.sendTracksAdded(note)
	case ports.NotifyTrackStarted:
		err = n.sendNowPlaying(ctx, note)
	case ports.NotifyTrackEnded:
		err = n.completeNowPlaying(note)
	case ports.NotifyTrackPaused:
		err = n.editNowPlaying(note.GuildID, authorPaused)
	case ports.NotifyTrackResumed:
		err = n.editNowPlaying(note.GuildID, authorNowPlaying)
	case ports.NotifyTrackException:
		err = n.sendError(note.ChannelID, exceptionMessage(note))
	case ports.NotifyQueueEnded:
		err = n.sendNotice(note.ChannelID, "The queue has ended.")
	case ports.NotifyIdle:
		err = n.sendNotice(note.ChannelID, "Left the voice channel due to inactivity.")
	case ports.NotifyStopped:
		n.forget(note.GuildID)
	}

	if err != nil {
		slog.Warn(
			"failed to render notification",
			"guild", note.GuildID,
			"kind", note.Kind,
			"error", err,
		)
	}
}

func (n *Notifier) sendTracksAdded(note ports.Notification) error {
	if len(note.Requests) == 0 || note.ChannelID == 0 {
		return nil
	}

	var description string
	if len(note.Requests) == 1 {
		description = fmt.Sprintf("Added **%s** to the queue.", note.Requests[0].Track().DisplayTitle())
	} else {
		description = fmt.Sprintf("Added %d tracks to the queue.", len(note.Requests))
	}

	_, err := n.sender.ChannelMessageSendEmbed(note.ChannelID.String(), &discordgo.MessageEmbed{
		Description: description,
	})
	return err
}

func (n *Notifier) sendNowPlaying(ctx context.Context, note ports.Notification) error {
	if note.Request == nil || note.ChannelID == 0 {
		return nil
	}

	embed := n.nowPlayingEmbed(ctx, note.Request)
	msg, err := n.sender.ChannelMessageSendEmbed(note.ChannelID.String(), embed)
	if err != nil {
		return err
	}
	messageID, err := snowflake.Parse(msg.ID)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.nowPlaying[note.GuildID] = &nowPlayingMessage{
		channelID: note.ChannelID,
		messageID: messageID,
		request:   note.Request,
		embed:     embed,
	}
	n.mu.Unlock()
	return nil
}

// completeNowPlaying turns the now-playing message of the ended request into
// a "played" record.
func (n *Notifier) completeNowPlaying(note ports.Notification) error {
	n.mu.Lock()
	msg, ok := n.nowPlaying[note.GuildID]
	if !ok || msg.request != note.Request {
		n.mu.Unlock()
		return nil
	}
	delete(n.nowPlaying, note.GuildID)
	n.mu.Unlock()

	embed := *msg.embed
	embed.Author = withAuthorName(embed.Author, authorPlayed)
	embed.Color = colorGray
	if by := note.Request.EndMember(); by != nil {
		if reason, ok := note.Request.EndReason(); ok {
			embed.Description = fmt.Sprintf("%s by %s", endVerb(reason), by.DisplayName)
		}
	}

	_, err := n.sender.ChannelMessageEditEmbed(msg.channelID.String(), msg.messageID.String(), &embed)
	return err
}

func (n *Notifier) editNowPlaying(guildID snowflake.ID, author string) error {
	n.mu.Lock()
	msg, ok := n.nowPlaying[guildID]
	if !ok {
		n.mu.Unlock()
		return nil
	}
	embed := *msg.embed
	embed.Author = withAuthorName(embed.Author, author)
	msg.embed = &embed
	n.mu.Unlock()

	_, err := n.sender.ChannelMessageEditEmbed(msg.channelID.String(), msg.messageID.String(), &embed)
	return err
}

func (n *Notifier) forget(guildID snowflake.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nowPlaying, guildID)
}

func (n *Notifier) sendNotice(channelID snowflake.ID, message string) error {
	if channelID == 0 {
		return nil
	}
	_, err := n.sender.ChannelMessageSendEmbed(channelID.String(), &discordgo.MessageEmbed{
		Description: message,
	})
	return err
}

// sendError sends an error message embed to the channel.
func (n *Notifier) sendError(channelID snowflake.ID, message string) error {
	if channelID == 0 {
		return nil
	}
	_, err := n.sender.ChannelMessageSendEmbed(channelID.String(), &discordgo.MessageEmbed{
		Description: message,
		Color:       colorRed,
	})
	return err
}

func (n *Notifier) nowPlayingEmbed(ctx context.Context, req *domain.TrackRequest) *discordgo.MessageEmbed {
	track := req.Track()
	source := track.Source()

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    authorNowPlaying,
			IconURL: source.IconURL(),
		},
		Title:     track.DisplayTitle(),
		URL:       track.URI,
		Color:     source.Color(),
		Timestamp: req.RequestedAt().UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Artist",
				Value:  track.DisplayAuthor(),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Requested by %s", req.Member().DisplayName),
		},
	}

	// Only show duration for non-stream tracks
	if !track.IsStream {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Duration",
			Value:  track.FormattedDuration(),
			Inline: true,
		})
	}

	if thumbnailURL := n.getBestThumbnail(ctx, source, track.Identifier, track.ArtworkURL); thumbnailURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{
			URL: thumbnailURL,
		}
	}

	return embed
}

func withAuthorName(author *discordgo.MessageEmbedAuthor, name string) *discordgo.MessageEmbedAuthor {
	if author == nil {
		return &discordgo.MessageEmbedAuthor{Name: name}
	}
	updated := *author
	updated.Name = name
	return &updated
}

func endVerb(reason domain.EndReason) string {
	switch reason {
	case domain.EndSkipped:
		return "Skipped"
	case domain.EndStopped:
		return "Stopped"
	default:
		return "Ended"
	}
}

func exceptionMessage(note ports.Notification) string {
	title := "the track"
	if note.Request != nil {
		title = fmt.Sprintf("**%s**", note.Request.Track().DisplayTitle())
	}
	if note.Detail == "" {
		return fmt.Sprintf("An error occurred while playing %s.", title)
	}
	return fmt.Sprintf("An error occurred while playing %s: %s", title, note.Detail)
}

// getBestThumbnail attempts to find the best quality thumbnail for the track.
// For YouTube, it tries different quality levels (maxresdefault, sddefault, etc.).
// For Twitch, it attempts to use a higher resolution version.
// For other sources, it returns the original artwork URL.
func (n *Notifier) getBestThumbnail(
	ctx context.Context,
	source domain.TrackSource,
	identifier string,
	fallbackURL string,
) string {
	switch source {
	case domain.TrackSourceYouTube:
		return n.getYouTubeThumbnail(ctx, identifier, fallbackURL)
	case domain.TrackSourceTwitch:
		return n.getTwitchThumbnail(ctx, fallbackURL)
	default:
		return fallbackURL
	}
}

// getYouTubeThumbnail tries to find the highest quality YouTube thumbnail available.
func (n *Notifier) getYouTubeThumbnail(ctx context.Context, videoID string, fallbackURL string) string {
	qualities := []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault"}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, quality := range qualities {
		url := fmt.Sprintf("https://img.youtube.com/vi/%s/%s.jpg", videoID, quality)
		if n.urlExists(ctx, url) {
			return url
		}
	}

	return fallbackURL
}

// getTwitchThumbnail tries to get a higher resolution Twitch thumbnail.
func (n *Notifier) getTwitchThumbnail(ctx context.Context, artworkURL string) string {
	if artworkURL == "" {
		return ""
	}

	// Try to get 1280x720 instead of 440x248
	highResURL := strings.Replace(artworkURL, "440x248", "1280x720", 1)
	if highResURL == artworkURL {
		return artworkURL
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if n.urlExists(ctx, highResURL) {
		return highResURL
	}

	return artworkURL
}

// urlExists checks if a URL returns a successful response using a HEAD request.
func (n *Notifier) urlExists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}
