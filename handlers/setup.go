package handlers

import (
	"errors"
	"fmt"

	"github.com/Necroforger/dgrouter/exrouter"

	"github.com/cufee/botto-guardian/database"
	"github.com/cufee/botto-guardian/profiles"
)

// SetupHandler - Register or replace this guild's moderation profile.
// Usage: setup @member-role @moderator-role #wait-channel #laws-channel #mod-channel
func (b *Bot) SetupHandler(ctx *exrouter.Context) {
	if !canManageRoles(ctx) {
		replyDel(ctx, "You need Manage Roles perms to set up the bot.", 15)
		return
	}

	profile := database.GuildProfile{
		ID:              ctx.Msg.GuildID,
		MemberRoleID:    stripMention(ctx.Args.Get(1)),
		ModeratorRoleID: stripMention(ctx.Args.Get(2)),
		WaitChannelID:   stripMention(ctx.Args.Get(3)),
		LawsChannelID:   stripMention(ctx.Args.Get(4)),
		ModChannelID:    stripMention(ctx.Args.Get(5)),
	}

	// Check the ids actually belong to this guild before accepting them.
	if err := b.validateAgainstGuild(ctx, profile); err != nil {
		replyDel(ctx, err.Error(), 15)
		return
	}
	for _, chanID := range []string{profile.WaitChannelID, profile.ModChannelID} {
		if !botPermsCheck(ctx, chanID) {
			replyDel(ctx, fmt.Sprintf("I do not have proper perms in <#%s> for moderation to work.", chanID), 15)
			return
		}
	}

	err := b.Profiles.Upsert(profile)
	if errors.Is(err, profiles.ErrValidation) {
		replyDel(ctx, fmt.Sprintf("That does not look right.\n```%v```\nUsage: `setup @member-role @moderator-role #wait #laws #mod`", err), 15)
		return
	}
	if err != nil {
		b.Logger.Error("profile upsert failed", "guild", ctx.Msg.GuildID, "err", err)
		replyDel(ctx, "Failed to save guild settings. Please try again later.", 15)
		return
	}
	replyDel(ctx, "Setup complete. New members are now held in the wait channel until a moderator runs `admit`.", 15)
}

// ProfileHandler - Show this guild's current moderation profile
func (b *Bot) ProfileHandler(ctx *exrouter.Context) {
	profile, err := b.Profiles.Get(ctx.Msg.GuildID)
	if errors.Is(err, profiles.ErrNotFound) {
		replyDel(ctx, "This server is not set up yet. Run `setup` first.", 15)
		return
	}
	if err != nil {
		replyDel(ctx, fmt.Sprintf("An error occured while fetching guild settings.\n```%v```", err), 15)
		return
	}
	msg := fmt.Sprintf(
		"**Guild profile**\nMember role: <@&%s>\nModerator role: <@&%s>\nWait channel: <#%s>\nLaws channel: <#%s>\nMod channel: <#%s>\nHash threshold: %d\nText threshold: %.2f\nRepost threshold: %d\nGlobal matching: %v",
		profile.MemberRoleID, profile.ModeratorRoleID,
		profile.WaitChannelID, profile.LawsChannelID, profile.ModChannelID,
		profiles.HashThreshold(profile), profiles.TextThreshold(profile),
		profiles.RepostThreshold(profile), profile.GlobalMatch,
	)
	replyDel(ctx, msg, 30)
}

// TeardownHandler - Remove this guild's moderation profile
func (b *Bot) TeardownHandler(ctx *exrouter.Context) {
	if !canManageRoles(ctx) {
		replyDel(ctx, "You need Manage Roles perms to remove the bot setup.", 15)
		return
	}
	err := b.Profiles.Delete(ctx.Msg.GuildID)
	if errors.Is(err, profiles.ErrNotFound) {
		replyDel(ctx, "This server is not set up.", 15)
		return
	}
	if err != nil {
		b.Logger.Error("profile delete failed", "guild", ctx.Msg.GuildID, "err", err)
		replyDel(ctx, "Failed to remove guild settings. Please try again later.", 15)
		return
	}
	replyDel(ctx, "Moderation profile removed. Events from this server are ignored until the next `setup`.", 15)
}

func (b *Bot) validateAgainstGuild(ctx *exrouter.Context, p database.GuildProfile) error {
	roles, err := ctx.Ses.GuildRoles(p.ID)
	if err != nil {
		return fmt.Errorf("I was not able to get a list of roles on this server.")
	}
	for _, want := range []string{p.MemberRoleID, p.ModeratorRoleID} {
		found := false
		for _, r := range roles {
			if r.ID == want {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("I was not able to find role `%s` on this server.", want)
		}
	}

	channels, err := ctx.Ses.GuildChannels(p.ID)
	if err != nil {
		return fmt.Errorf("I was not able to get a list of channels on this server.")
	}
	for _, want := range []string{p.WaitChannelID, p.LawsChannelID, p.ModChannelID} {
		found := false
		for _, c := range channels {
			if c.ID == want {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("I was not able to find channel `%s` on this server.", want)
		}
	}
	return nil
}
