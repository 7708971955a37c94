package handlers

import (
	"regexp"
	"time"

	"github.com/Necroforger/dgrouter/exrouter"
	"github.com/bwmarrin/discordgo"

	"github.com/cufee/botto-guardian/config"
	"github.com/cufee/botto-guardian/database"
)

// Strips mention decoration from role/channel/user arguments
var mentionRe = regexp.MustCompile(`[<@&#!>]`)

func stripMention(arg string) string {
	return mentionRe.ReplaceAllString(arg, "")
}

// replyDel - Reply and delete the reply after a delay
func replyDel(ctx *exrouter.Context, msg string, delay time.Duration) {
	newMsg, err := ctx.Reply(msg)
	if err != nil || newMsg == nil {
		return
	}
	go func() {
		time.Sleep(time.Second * delay)
		ctx.Ses.ChannelMessageDelete(ctx.Msg.ChannelID, newMsg.ID)
	}()
}

// isModerator - Invoker carries the guild's moderator role, or manage-roles
// perms as a fallback for initial setup
func isModerator(ctx *exrouter.Context, profile database.GuildProfile) bool {
	member, err := ctx.Ses.GuildMember(ctx.Msg.GuildID, ctx.Msg.Author.ID)
	if err == nil {
		for _, r := range member.Roles {
			if r == profile.ModeratorRoleID {
				return true
			}
		}
	}
	return canManageRoles(ctx)
}

func canManageRoles(ctx *exrouter.Context) bool {
	perms, err := ctx.Ses.UserChannelPermissions(ctx.Msg.Author.ID, ctx.Msg.ChannelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionManageRoles == discordgo.PermissionManageRoles
}

// botPermsCheck - Check the bot itself has the perms it needs in a channel
func botPermsCheck(ctx *exrouter.Context, chanID string) bool {
	perms, err := ctx.Ses.UserChannelPermissions(ctx.Ses.State.User.ID, chanID)
	if err != nil {
		return false
	}
	return perms&config.PermsCode == config.PermsCode
}
