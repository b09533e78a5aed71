package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"dlerbot/internal/session"
)

const commandName = "dler"

var dlerCommand = &discordgo.ApplicationCommand{
	Name:        commandName,
	Description: "Download a video or its audio track from a URL",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "url",
			Description: "Link to the media page",
			Required:    true,
		},
	},
}

// Sessions is what the bot needs from the session manager.
type Sessions interface {
	Open(ctx context.Context, req session.Request, surface session.Surface) (*session.Session, error)
	Dispatch(ctx context.Context, sessionID string, action session.Action, actor session.Actor) error
}

type Options struct {
	Token   string
	GuildID string
	// RemoveCommands unregisters the slash command on shutdown.
	RemoveCommands bool
}

// Bot connects the session manager to the Discord gateway.
type Bot struct {
	dg       *discordgo.Session
	rest     restClient
	sessions Sessions
	opts     Options

	mu         sync.Mutex
	ctx        context.Context
	registered []*discordgo.ApplicationCommand
}

func New(opts Options, sessions Sessions) (*Bot, error) {
	if opts.Token == "" {
		return nil, errors.New("discord token is required")
	}
	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	b := newBot(dg, sessions, opts)
	dg.AddHandler(b.onReady)
	dg.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(b.context(), i.Interaction)
	})
	return b, nil
}

func newBot(rest restClient, sessions Sessions, opts Options) *Bot {
	b := &Bot{rest: rest, sessions: sessions, opts: opts, ctx: context.Background()}
	if dg, ok := rest.(*discordgo.Session); ok {
		b.dg = dg
	}
	return b
}

// Run connects to the gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	log.Info().Str("guild_id", b.opts.GuildID).Msg("discord gateway connected")

	<-ctx.Done()

	if b.opts.RemoveCommands {
		b.unregister()
	}
	if err := b.dg.Close(); err != nil {
		log.Warn().Err(err).Msg("discord gateway close")
	}
	log.Info().Msg("discord gateway closed")
	return nil
}

func (b *Bot) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	cmd, err := s.ApplicationCommandCreate(r.User.ID, b.opts.GuildID, dlerCommand)
	if err != nil {
		log.Error().Err(err).Str("command", commandName).Msg("register slash command")
		return
	}
	b.mu.Lock()
	b.registered = append(b.registered, cmd)
	b.mu.Unlock()
	log.Info().Str("user", r.User.Username).Str("command", commandName).Msg("bot ready")
}

func (b *Bot) unregister() {
	b.mu.Lock()
	cmds := b.registered
	b.registered = nil
	b.mu.Unlock()
	for _, cmd := range cmds {
		if err := b.dg.ApplicationCommandDelete(cmd.ApplicationID, b.opts.GuildID, cmd.ID); err != nil {
			log.Warn().Err(err).Str("command", cmd.Name).Msg("unregister slash command")
		}
	}
}

func (b *Bot) handleInteraction(ctx context.Context, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == commandName {
			b.handleCommand(ctx, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, i)
	}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	var rawURL string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "url" {
			rawURL = opt.StringValue()
		}
	}
	userID := interactionUserID(i)

	_, err := b.sessions.Open(ctx, session.Request{URL: rawURL, RequesterID: userID}, newCommandSurface(b.rest, i))
	if err == nil {
		return
	}
	log.Warn().Str("user_id", userID).Str("url", rawURL).Err(err).Msg("command rejected")

	var text string
	switch {
	case errors.Is(err, session.ErrInvalidURL):
		text = "Please provide a valid http(s) URL."
	case errors.Is(err, session.ErrShuttingDown):
		text = "The bot is restarting. Please try again in a moment."
	case errors.Is(err, session.ErrBusy):
		text = "Too many downloads are in progress. Please try again later."
	default:
		text = "Something went wrong while starting the download."
	}
	b.replyEphemeral(ctx, i, text)
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.Interaction) {
	sessionID, action, ok := ParseCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}
	// Acknowledge first: deleting may outlast the three-second reply window.
	err := b.rest.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.Warn().Str("session_id", sessionID).Err(err).Msg("acknowledge component")
		return
	}

	actor := &componentActor{rest: b.rest, interaction: i}
	if err := b.sessions.Dispatch(ctx, sessionID, action, actor); err != nil {
		log.Debug().Str("session_id", sessionID).Str("action", string(action)).Str("user_id", actor.UserID()).Err(err).Msg("action not applied")
	}
}

func (b *Bot) replyEphemeral(ctx context.Context, i *discordgo.Interaction, text string) {
	err := b.rest.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.Warn().Err(err).Msg("ephemeral reply failed")
	}
}
