// Package moderation evaluates inbound messages against a guild's policy:
// text severity scoring plus perceptual-hash matching of image attachments
// against the shared hash index. Text and image checks are independent, both
// always run.
package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cufee/botto-guardian/database"
	"github.com/cufee/botto-guardian/hashindex"
	"github.com/cufee/botto-guardian/profiles"
)

// Hasher - URL to perceptual hash resolver, see fetchhash
type Hasher interface {
	HashFor(ctx context.Context, url string) (uint64, error)
}

// Actions - Side effects the pipeline can take on the platform
type Actions interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// Best effort, a failure is logged and never fails the event.
	NotifyModerators(ctx context.Context, channelID, text string) error
}

// Message - Inbound message event as the pipeline sees it
type Message struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	AuthorID    string
	Body        string
	Attachments []string
}

// Pipeline - Per-message moderation orchestrator
type Pipeline struct {
	scorer  Scorer
	hasher  Hasher
	index   *hashindex.Index
	actions Actions
	logger  *slog.Logger
}

// NewPipeline - Wire the pipeline over its collaborators
func NewPipeline(scorer Scorer, hasher Hasher, index *hashindex.Index, actions Actions, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		scorer:  scorer,
		hasher:  hasher,
		index:   index,
		actions: actions,
		logger:  logger,
	}
}

// Process - Evaluate one message. Failures degrade to a partially processed
// event, they never propagate out of the pipeline.
func (p *Pipeline) Process(ctx context.Context, profile database.GuildProfile, msg Message) {
	log := p.logger.With("guild", msg.GuildID, "message", msg.MessageID, "author", msg.AuthorID)
	deleted := false

	severity := p.scorer.Score(msg.Body)
	if severity >= profiles.TextThreshold(profile) {
		log.Info("message text violating", "severity", severity)
		p.remove(ctx, profile, msg, &deleted,
			fmt.Sprintf("abusive language (severity %.2f)", severity))
	}

	for i, url := range msg.Attachments {
		code, err := p.hasher.HashFor(ctx, url)
		if err != nil {
			// Per-attachment failures skip the attachment only.
			log.Warn("attachment skipped", "url", url, "err", err)
			continue
		}

		matches := p.index.FindMatches(code, profile.ID, profile.GlobalMatch, profiles.HashThreshold(profile))

		if flagged := firstFlagged(matches); flagged != nil {
			log.Info("flagged image match",
				"code", fmt.Sprintf("%016x", code), "distance", flagged.Distance, "origin", flagged.GuildID)
			p.remove(ctx, profile, msg, &deleted, "previously flagged image")
			// The existing flagged record stays authoritative, no insert.
			continue
		}

		err = p.index.Insert(database.HashRecord{
			Hash:       code,
			GuildID:    msg.GuildID,
			MessageID:  msg.MessageID,
			AuthorID:   msg.AuthorID,
			Attachment: i,
		})
		if err != nil {
			log.Warn("hash record insert failed", "err", err)
		}

		if n := observedGuildCount(matches, profile.ID); n >= profiles.RepostThreshold(profile) {
			log.Info("repost threshold reached", "code", fmt.Sprintf("%016x", code), "count", n)
			p.notify(ctx, profile, fmt.Sprintf(
				"Image posted by <@%s> has now appeared %d times in this server (message %s). Consider `flaghash %016x`.",
				msg.AuthorID, n+1, msg.MessageID, code))
		}
	}
}

func (p *Pipeline) remove(ctx context.Context, profile database.GuildProfile, msg Message, deleted *bool, reason string) {
	if !*deleted {
		if err := p.actions.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
			p.logger.Error("message removal failed",
				"guild", msg.GuildID, "message", msg.MessageID, "err", err)
		} else {
			*deleted = true
		}
	}
	p.notify(ctx, profile, fmt.Sprintf("Deleted message from <@%s> (reason: %s)", msg.AuthorID, reason))
}

func (p *Pipeline) notify(ctx context.Context, profile database.GuildProfile, text string) {
	if err := p.actions.NotifyModerators(ctx, profile.ModChannelID, text); err != nil {
		p.logger.Warn("moderator notice failed", "guild", profile.ID, "err", err)
	}
}

func firstFlagged(matches []hashindex.Match) *hashindex.Match {
	for i := range matches {
		if matches[i].Disposition == database.DispositionFlagged {
			return &matches[i]
		}
	}
	return nil
}

// Cleared records were explicitly waved through by a moderator, they do not
// feed the repost escalation.
func observedGuildCount(matches []hashindex.Match, guildID string) int {
	n := 0
	for _, m := range matches {
		if m.GuildID == guildID && m.Disposition == database.DispositionObserved {
			n++
		}
	}
	return n
}
