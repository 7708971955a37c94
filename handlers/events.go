package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cufee/botto-guardian/admission"
	"github.com/cufee/botto-guardian/database"
	"github.com/cufee/botto-guardian/fetchhash"
	"github.com/cufee/botto-guardian/hashindex"
	"github.com/cufee/botto-guardian/moderation"
	"github.com/cufee/botto-guardian/profiles"
)

// Bot - Event and command handlers wired over the moderation core
type Bot struct {
	Profiles  *profiles.Store
	Admission *admission.Controller
	Pipeline  *moderation.Pipeline
	Index     *hashindex.Index
	Fetcher   *fetchhash.Fetcher
	Logger    *slog.Logger

	// Upper bound for processing one message end to end.
	EventTimeout time.Duration

	// Bounded worker pool, one slow image fetch must never back up the
	// gateway reader.
	sem chan struct{}
}

// New - Build the handler set with the given worker limit
func New(p *profiles.Store, a *admission.Controller, pipe *moderation.Pipeline, idx *hashindex.Index, f *fetchhash.Fetcher, logger *slog.Logger, workers int, eventTimeout time.Duration) *Bot {
	if workers < 1 {
		workers = 1
	}
	return &Bot{
		Profiles:     p,
		Admission:    a,
		Pipeline:     pipe,
		Index:        idx,
		Fetcher:      f,
		Logger:       logger,
		EventTimeout: eventTimeout,
		sem:          make(chan struct{}, workers),
	}
}

// Events for unconfigured guilds are dropped with a warning, never an error.
func (b *Bot) profileFor(gid, event string) (database.GuildProfile, bool) {
	profile, err := b.Profiles.Get(gid)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			b.Logger.Warn("event for unconfigured guild dropped", "guild", gid, "event", event)
		} else {
			b.Logger.Error("guild profile lookup failed", "guild", gid, "event", event, "err", err)
		}
		return database.GuildProfile{}, false
	}
	return profile, true
}

// MemberJoin - Record a joining member as restricted unless the platform
// already grants the trusted role
func (b *Bot) MemberJoin(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
	profile, ok := b.profileFor(e.GuildID, "member-join")
	if !ok {
		return
	}

	hasTrusted := false
	for _, r := range e.Roles {
		if r == profile.MemberRoleID {
			hasTrusted = true
			break
		}
	}

	if err := b.Admission.HandleJoin(e.GuildID, e.User.ID, hasTrusted); err != nil {
		b.Logger.Error("join handling failed", "guild", e.GuildID, "member", e.User.ID, "err", err)
		return
	}

	// Mod channel heads-up, best effort.
	s.ChannelMessageSend(profile.ModChannelID,
		fmt.Sprintf("<@%s> joined and is waiting in <#%s>.", e.User.ID, profile.WaitChannelID))
}

// MemberLeave - Discard the admission record for a leaving member
func (b *Bot) MemberLeave(s *discordgo.Session, e *discordgo.GuildMemberRemove) {
	if _, ok := b.profileFor(e.GuildID, "member-leave"); !ok {
		return
	}
	if err := b.Admission.HandleLeave(e.GuildID, e.User.ID); err != nil {
		b.Logger.Error("leave handling failed", "guild", e.GuildID, "member", e.User.ID, "err", err)
	}
}

// Lottie stickers are vector animations, there are no pixels to hash.
func stickerURL(s *discordgo.StickerItem) string {
	switch s.FormatType {
	case discordgo.StickerFormatTypePNG, discordgo.StickerFormatTypeAPNG:
		return "https://cdn.discordapp.com/stickers/" + s.ID + ".png"
	case discordgo.StickerFormatTypeGIF:
		return "https://cdn.discordapp.com/stickers/" + s.ID + ".gif"
	default:
		return ""
	}
}

// MessageScreen - Hand a posted message to the moderation pipeline
func (b *Bot) MessageScreen(s *discordgo.Session, e *discordgo.MessageCreate) {
	// Ignore self, other bots, and DMs
	if e.Author == nil || e.Author.Bot || e.GuildID == "" {
		return
	}

	profile, ok := b.profileFor(e.GuildID, "message")
	if !ok {
		return
	}

	msg := moderation.Message{
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		MessageID: e.ID,
		AuthorID:  e.Author.ID,
		Body:      e.Content,
	}
	for _, a := range e.Attachments {
		msg.Attachments = append(msg.Attachments, a.URL)
	}
	// Stickers are screened like any other image the message carries.
	for _, st := range e.StickerItems {
		if url := stickerURL(st); url != "" {
			msg.Attachments = append(msg.Attachments, url)
		}
	}

	b.sem <- struct{}{}
	go func() {
		defer func() { <-b.sem }()
		ctx, cancel := context.WithTimeout(context.Background(), b.EventTimeout)
		defer cancel()
		b.Pipeline.Process(ctx, profile, msg)
	}()
}
