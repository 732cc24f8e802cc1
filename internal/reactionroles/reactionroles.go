// Package reactionroles grants and revokes roles when members react to the
// pinned roles message. The emoji-to-role table comes from config; every
// failure is logged and swallowed, since a missed role flip is recoverable
// by reacting again.
package reactionroles

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"amd/pkg/logx"
)

// RoleManager is the slice of the Discord client this package needs.
type RoleManager interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

type Handler struct {
	log       logx.Logger
	roles     RoleManager
	messageID string
	mapping   map[string]string // emoji name -> role id
}

func New(roles RoleManager, messageID string, mapping map[string]string, log logx.Logger) *Handler {
	m := make(map[string]string, len(mapping))
	for emoji, roleID := range mapping {
		m[emoji] = roleID
	}
	return &Handler{
		log:       log.With(logx.String("comp", "reactionroles")),
		roles:     roles,
		messageID: messageID,
		mapping:   m,
	}
}

func (h *Handler) HandleAdd(ctx context.Context, r *discordgo.MessageReaction) {
	h.handle(ctx, r, true)
}

func (h *Handler) HandleRemove(ctx context.Context, r *discordgo.MessageReaction) {
	h.handle(ctx, r, false)
}

func (h *Handler) handle(ctx context.Context, r *discordgo.MessageReaction, add bool) {
	if r == nil || r.MessageID != h.messageID {
		return
	}
	roleID, ok := h.mapping[r.Emoji.Name]
	if !ok {
		return
	}
	if r.GuildID == "" || r.UserID == "" {
		return
	}

	h.log.Debug("handling reaction",
		logx.String("emoji", r.Emoji.Name),
		logx.String("user", r.UserID),
		logx.Bool("add", add))

	var err error
	if add {
		err = h.roles.AddRole(ctx, r.GuildID, r.UserID, roleID)
	} else {
		err = h.roles.RemoveRole(ctx, r.GuildID, r.UserID, roleID)
	}
	if err != nil {
		h.log.Error("reaction role update failed",
			logx.String("emoji", r.Emoji.Name),
			logx.String("user", r.UserID),
			logx.Err(err))
	}
}
