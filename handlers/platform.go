package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// DiscordPlatform - Discord-backed implementation of the role and message
// actions the admission controller and moderation pipeline depend on
type DiscordPlatform struct {
	Ses *discordgo.Session
}

// GrantRole - Add a role to a guild member
func (p *DiscordPlatform) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	return p.Ses.GuildMemberRoleAdd(guildID, memberID, roleID, discordgo.WithContext(ctx))
}

// RevokeRole - Remove a role from a guild member
func (p *DiscordPlatform) RevokeRole(ctx context.Context, guildID, memberID, roleID string) error {
	return p.Ses.GuildMemberRoleRemove(guildID, memberID, roleID, discordgo.WithContext(ctx))
}

// DeleteMessage - Remove a message from a channel
func (p *DiscordPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return p.Ses.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// NotifyModerators - Post a notice to the guild's moderator channel
func (p *DiscordPlatform) NotifyModerators(ctx context.Context, channelID, text string) error {
	_, err := p.Ses.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}
