// Package discord adapts the bot to Discord: slash commands in, embeds and
// DMs out. It is the only package that imports discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/asmahdi08/Theseus-Bot/internal/commands"
	"github.com/asmahdi08/Theseus-Bot/internal/polls"
	"github.com/asmahdi08/Theseus-Bot/internal/remind"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

// messagePrefix triggers custom-command lookup on plain messages.
const messagePrefix = "!"

type Config struct {
	Token string
	// GuildID scopes slash-command registration to a single guild (instant
	// sync, the usual dev setup). Empty registers globally.
	GuildID string
	// HandlerTimeout bounds each interaction handler.
	HandlerTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	remind *remind.Service
	polls  *polls.Service
	cmds   *commands.Service

	runMu   sync.Mutex
	sess    *discordgo.Session
	running bool
}

func New(cfg Config, rs *remind.Service, ps *polls.Service, cs *commands.Service, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	sess, err := discordgo.New("Bot " + strings.TrimPrefix(cfg.Token, "Bot "))
	if err != nil {
		return nil, err
	}
	sess.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	sess.StateEnabled = true

	a := &Adapter{
		cfg:    cfg,
		log:    log,
		remind: rs,
		polls:  ps,
		cmds:   cs,
		sess:   sess,
	}
	sess.AddHandler(a.onReady)
	sess.AddHandler(a.onInteraction)
	sess.AddHandler(a.onMessage)
	return a, nil
}

// Start opens the gateway connection and registers the slash commands.
func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	if err := a.registerCommands(); err != nil {
		_ = a.sess.Close()
		return fmt.Errorf("register slash commands: %w", err)
	}
	a.running = true
	a.log.Info("discord session open", logx.String("user", a.sess.State.User.Username))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	return a.sess.Close()
}

func (a *Adapter) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	a.log.Info("logged in", logx.String("user", r.User.Username))
}

// SendDM implements delivery.Sender: it opens (or reuses) the user's DM
// channel and sends the reminder embed.
func (a *Adapter) SendDM(ctx context.Context, userID, title, body string, delayed bool) error {
	ch, err := a.sess.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel for %s: %w", userID, err)
	}
	embed := reminderEmbed(title, body, delayed)
	if _, err := a.sess.ChannelMessageSendEmbed(ch.ID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm to %s: %w", userID, err)
	}
	return nil
}

// onMessage answers custom commands on plain "!name" messages.
func (a *Adapter) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, messagePrefix) {
		return
	}
	name := strings.Fields(strings.TrimPrefix(m.Content, messagePrefix))
	if len(name) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HandlerTimeout)
	defer cancel()

	reply, ok, err := a.cmds.Lookup(ctx, name[0])
	if err != nil {
		a.log.Warn("custom command lookup failed", logx.String("name", name[0]), logx.Err(err))
		return
	}
	if !ok {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		a.log.Warn("custom command reply failed", logx.String("name", name[0]), logx.Err(err))
	}
}

// interactionUser works for both guild and DM interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}
