package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Necroforger/dgrouter/exrouter"

	"github.com/cufee/botto-guardian/database"
	"github.com/cufee/botto-guardian/profiles"
)

// Command-facing profile lookup with user feedback
func (b *Bot) commandProfile(ctx *exrouter.Context) (database.GuildProfile, bool) {
	profile, err := b.Profiles.Get(ctx.Msg.GuildID)
	if errors.Is(err, profiles.ErrNotFound) {
		replyDel(ctx, "This server is not set up yet. Run `setup` first.", 15)
		return profile, false
	}
	if err != nil {
		replyDel(ctx, fmt.Sprintf("An error occured while fetching guild settings.\n```%v```", err), 15)
		return profile, false
	}
	if !isModerator(ctx, profile) {
		replyDel(ctx, "You need the moderator role to use this command.", 15)
		return profile, false
	}
	return profile, true
}

// AdmitHandler - Move mentioned members from restricted to trusted
func (b *Bot) AdmitHandler(ctx *exrouter.Context) {
	profile, ok := b.commandProfile(ctx)
	if !ok {
		return
	}
	if len(ctx.Msg.Mentions) == 0 {
		replyDel(ctx, "Please include at least one user mention.", 15)
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), b.EventTimeout)
	defer cancel()

	failed := 0
	for _, u := range ctx.Msg.Mentions {
		if err := b.Admission.Admit(cctx, profile, u.ID); err != nil {
			// Not committed, safe for the moderator to re-issue.
			b.Logger.Error("admit failed", "guild", profile.ID, "member", u.ID, "err", err)
			failed++
		}
	}
	if failed != 0 {
		replyDel(ctx, fmt.Sprintf("%v of %v admissions failed, those members are unchanged. Run the command again for them.", failed, len(ctx.Msg.Mentions)), 15)
		return
	}
	replyDel(ctx, fmt.Sprintf("Admitted %v members. Welcome them in!", len(ctx.Msg.Mentions)), 15)
}

// RevokeHandler - Move mentioned members back to restricted
func (b *Bot) RevokeHandler(ctx *exrouter.Context) {
	profile, ok := b.commandProfile(ctx)
	if !ok {
		return
	}
	if len(ctx.Msg.Mentions) == 0 {
		replyDel(ctx, "Please include at least one user mention.", 15)
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), b.EventTimeout)
	defer cancel()

	failed := 0
	for _, u := range ctx.Msg.Mentions {
		if err := b.Admission.Revoke(cctx, profile, u.ID); err != nil {
			b.Logger.Error("revoke failed", "guild", profile.ID, "member", u.ID, "err", err)
			failed++
		}
	}
	if failed != 0 {
		replyDel(ctx, fmt.Sprintf("%v of %v revocations failed, those members are unchanged.", failed, len(ctx.Msg.Mentions)), 15)
		return
	}
	replyDel(ctx, fmt.Sprintf("Restricted %v members.", len(ctx.Msg.Mentions)), 15)
}

func parseHashArg(arg string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 64)
}

// FlagHashHandler - Mark a hash code as flagged policy content
func (b *Bot) FlagHashHandler(ctx *exrouter.Context) {
	profile, ok := b.commandProfile(ctx)
	if !ok {
		return
	}
	code, err := parseHashArg(ctx.Args.Get(1))
	if err != nil {
		replyDel(ctx, "Please pass the hash code as hex, e.g. `flaghash d1c3b00c0ffee000`.", 15)
		return
	}
	n, err := b.Index.Flag(code, profile.ID)
	if err != nil {
		b.Logger.Error("flag hash failed", "guild", profile.ID, "err", err)
		replyDel(ctx, "Failed to update the hash index. Please try again later.", 15)
		return
	}
	replyDel(ctx, fmt.Sprintf("Flagged `%016x` (%v records updated). Matching images will be removed.", code, n), 15)
}

// ClearHashHandler - Mark a hash code as cleared, observed records only
func (b *Bot) ClearHashHandler(ctx *exrouter.Context) {
	profile, ok := b.commandProfile(ctx)
	if !ok {
		return
	}
	code, err := parseHashArg(ctx.Args.Get(1))
	if err != nil {
		replyDel(ctx, "Please pass the hash code as hex, e.g. `clearhash d1c3b00c0ffee000`.", 15)
		return
	}
	n, err := b.Index.Clear(code, profile.ID)
	if err != nil {
		b.Logger.Error("clear hash failed", "guild", profile.ID, "err", err)
		replyDel(ctx, "Failed to update the hash index. Please try again later.", 15)
		return
	}
	replyDel(ctx, fmt.Sprintf("Cleared `%016x` (%v records updated).", code, n), 15)
}

// BlockImageHandler - Hash and flag every attachment of a message in this
// channel, then delete the message
func (b *Bot) BlockImageHandler(ctx *exrouter.Context) {
	profile, ok := b.commandProfile(ctx)
	if !ok {
		return
	}
	messageID := ctx.Args.Get(1)
	if messageID == "" {
		replyDel(ctx, "Please pass the id of the message to block, e.g. `blockimage 1199551263245…`.", 15)
		return
	}

	msg, err := ctx.Ses.ChannelMessage(ctx.Msg.ChannelID, messageID)
	if err != nil {
		replyDel(ctx, "I was not able to find that message in this channel.", 15)
		return
	}
	if len(msg.Attachments) == 0 {
		replyDel(ctx, "No image(s) found!", 15)
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), b.EventTimeout)
	defer cancel()

	blocked := 0
	for i, a := range msg.Attachments {
		code, err := b.Fetcher.HashFor(cctx, a.URL)
		if err != nil {
			b.Logger.Warn("blockimage attachment skipped", "guild", profile.ID, "url", a.URL, "err", err)
			continue
		}
		err = b.Index.Insert(database.HashRecord{
			Hash:       code,
			GuildID:    profile.ID,
			MessageID:  msg.ID,
			AuthorID:   msg.Author.ID,
			Attachment: i,
		})
		if err != nil {
			b.Logger.Error("blockimage insert failed", "guild", profile.ID, "err", err)
			continue
		}
		if _, err := b.Index.Flag(code, profile.ID); err != nil {
			b.Logger.Error("blockimage flag failed", "guild", profile.ID, "err", err)
			continue
		}
		blocked++
		b.Logger.Info("image blocked", "guild", profile.ID, "code", fmt.Sprintf("%016x", code), "blocker", ctx.Msg.Author.ID)
	}

	if blocked == 0 {
		replyDel(ctx, "No images blocked, every attachment failed to hash.", 15)
		return
	}
	if err := ctx.Ses.ChannelMessageDelete(ctx.Msg.ChannelID, msg.ID); err != nil {
		b.Logger.Error("blockimage delete failed", "guild", profile.ID, "message", msg.ID, "err", err)
	}
	replyDel(ctx, fmt.Sprintf("Added %v image(s) to the blocklist and deleted the message.", blocked), 15)
}
