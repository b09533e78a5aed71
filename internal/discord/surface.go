package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"dlerbot/internal/session"
)

// restClient is the subset of *discordgo.Session the adapter calls.
type restClient interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponse(interaction *discordgo.Interaction, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Interaction tokens are valid for 15 minutes. Past this age edits go
// through the channel message endpoint instead.
const tokenLifetime = 14 * time.Minute

// commandSurface is the reply to a slash command. The first render answers
// the interaction, later renders edit that reply.
type commandSurface struct {
	rest        restClient
	interaction *discordgo.Interaction
	now         func() time.Time

	mu          sync.Mutex
	respondedAt time.Time
	channelID   string
	messageID   string
}

func newCommandSurface(rest restClient, i *discordgo.Interaction) *commandSurface {
	return &commandSurface{rest: rest, interaction: i, now: time.Now}
}

func (s *commandSurface) Render(ctx context.Context, v session.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.respondedAt.IsZero() {
		err := s.rest.InteractionRespond(s.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: responseData(v),
		}, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		s.respondedAt = s.now()
		if msg, err := s.rest.InteractionResponse(s.interaction, discordgo.WithContext(ctx)); err == nil {
			s.channelID, s.messageID = msg.ChannelID, msg.ID
		} else {
			log.Debug().Err(err).Msg("could not resolve reply message id")
		}
		return nil
	}

	if s.now().Sub(s.respondedAt) >= tokenLifetime && s.messageID != "" {
		_, err := s.rest.ChannelMessageEditComplex(messageEdit(s.channelID, s.messageID, v), discordgo.WithContext(ctx))
		return err
	}
	_, err := s.rest.InteractionResponseEdit(s.interaction, webhookEdit(v), discordgo.WithContext(ctx))
	return err
}

// componentActor is the user who pressed a button. The component
// interaction has already been acknowledged, so notices are ephemeral
// follow-ups.
type componentActor struct {
	rest        restClient
	interaction *discordgo.Interaction
}

func (a *componentActor) UserID() string {
	return interactionUserID(a.interaction)
}

func (a *componentActor) Notify(ctx context.Context, text string) error {
	_, err := a.rest.FollowupMessageCreate(a.interaction, true, &discordgo.WebhookParams{
		Content: text,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, discordgo.WithContext(ctx))
	return err
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
