// Package discord wraps the discordgo session behind the narrow surface the
// daemon needs: send a report, read back a channel's recent messages, flip a
// member's role, subscribe to reaction events.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"amd/pkg/logx"
)

type Config struct {
	Token string
	// SendRatePerSec caps outgoing messages across all callers (default 2).
	// Discord enforces its own limits; staying under them beats getting
	// throttled mid-report.
	SendRatePerSec int
}

type Client struct {
	cfg     Config
	log     logx.Logger
	session *discordgo.Session
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent

	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 2
	}

	return &Client{
		cfg:     cfg,
		log:     log.With(logx.String("comp", "discord")),
		session: session,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Connect opens the gateway connection. Must complete before the scheduler
// starts: tasks assume a connected client.
func (c *Client) Connect() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	c.log.Info("connected to discord gateway")
	return nil
}

func (c *Client) Close() error {
	return c.session.Close()
}

// Say sends a plain-text message to a channel.
func (c *Client) Say(ctx context.Context, channelID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send message to channel %s: %w", channelID, err)
	}
	return nil
}

// SendEmbed sends a rich embed to a channel.
func (c *Client) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send embed to channel %s: %w", channelID, err)
	}
	return nil
}

// RecentMessages fetches up to limit of the newest messages in a channel,
// newest first (Discord's ordering).
func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch messages from channel %s: %w", channelID, err)
	}
	return msgs, nil
}

func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s to user %s: %w", roleID, userID, err)
	}
	return nil
}

func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role %s from user %s: %w", roleID, userID, err)
	}
	return nil
}

// OnReactionAdd registers a gateway handler for reaction-add events.
func (c *Client) OnReactionAdd(fn func(reaction *discordgo.MessageReaction)) {
	c.session.AddHandler(func(_ *discordgo.Session, e *discordgo.MessageReactionAdd) {
		fn(e.MessageReaction)
	})
}

// OnReactionRemove registers a gateway handler for reaction-remove events.
func (c *Client) OnReactionRemove(fn func(reaction *discordgo.MessageReaction)) {
	c.session.AddHandler(func(_ *discordgo.Session, e *discordgo.MessageReactionRemove) {
		fn(e.MessageReaction)
	})
}

// BotAvatarURL returns the bot account's avatar, for report embed authors.
func (c *Client) BotAvatarURL() string {
	if u := c.session.State.User; u != nil {
		return u.AvatarURL("")
	}
	return ""
}
