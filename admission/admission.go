// Package admission runs the per-member gate between the restricted and
// trusted states. A transition commits only after the platform role call
// succeeded, so the stored state never runs ahead of the real role.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cufee/botto-guardian/database"
)

// Platform - Role actions the controller needs from the chat platform
type Platform interface {
	GrantRole(ctx context.Context, guildID, memberID, roleID string) error
	RevokeRole(ctx context.Context, guildID, memberID, roleID string) error
}

// Controller - Admission state machine over the persistent member records
type Controller struct {
	db       *database.Store
	platform Platform
	logger   *slog.Logger

	// One lock per (guild, member), transitions for the same member are
	// serialized across the platform call.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewController - Build an admission controller
func NewController(db *database.Store, platform Platform, logger *slog.Logger) *Controller {
	return &Controller{
		db:       db,
		platform: platform,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (c *Controller) keyLock(gid, mid string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := gid + "/" + mid
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// HandleJoin - Record a member joining. Members arriving with the trusted
// role already granted start trusted, everyone else starts restricted.
func (c *Controller) HandleJoin(gid, mid string, hasTrustedRole bool) error {
	l := c.keyLock(gid, mid)
	l.Lock()
	defer l.Unlock()

	_, err := c.db.GetMemberState(gid, mid)
	if err == nil {
		// Rejoin with an existing record, keep it.
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}
	ms := database.MemberState{
		GuildID:  gid,
		MemberID: mid,
		Trusted:  hasTrustedRole,
		JoinedAt: time.Now().UTC(),
		Version:  1,
	}
	if err := c.db.PutMemberState(ms); err != nil {
		return err
	}
	c.logger.Info("member joined", "guild", gid, "member", mid, "trusted", hasTrustedRole)
	return nil
}

// HandleLeave - Discard the member record, the state is meaningless now.
// The keyed lock stays in place so a transition racing the leave is still
// serialized against any later rejoin; the lock map is bounded by the set of
// members ever seen, not by current membership.
func (c *Controller) HandleLeave(gid, mid string) error {
	l := c.keyLock(gid, mid)
	l.Lock()
	defer l.Unlock()
	return c.db.DeleteMemberState(gid, mid)
}

// Admit - Grant the member role and commit the trusted state. Safe to
// re-issue, an already trusted member causes no platform call.
func (c *Controller) Admit(ctx context.Context, profile database.GuildProfile, mid string) error {
	l := c.keyLock(profile.ID, mid)
	l.Lock()
	defer l.Unlock()

	ms, err := c.memberLocked(profile.ID, mid)
	if err != nil {
		return err
	}
	if ms.Trusted {
		return nil
	}
	if err := c.platform.GrantRole(ctx, profile.ID, mid, profile.MemberRoleID); err != nil {
		return fmt.Errorf("granting member role: %w", err)
	}
	ms.Trusted = true
	ms.Version++
	if err := c.db.PutMemberState(ms); err != nil {
		return err
	}
	c.logger.Info("member admitted", "guild", profile.ID, "member", mid, "version", ms.Version)
	return nil
}

// Revoke - Remove the member role and commit the restricted state. No-op on
// an already restricted member.
func (c *Controller) Revoke(ctx context.Context, profile database.GuildProfile, mid string) error {
	l := c.keyLock(profile.ID, mid)
	l.Lock()
	defer l.Unlock()

	ms, err := c.memberLocked(profile.ID, mid)
	if err != nil {
		return err
	}
	if !ms.Trusted {
		return nil
	}
	if err := c.platform.RevokeRole(ctx, profile.ID, mid, profile.MemberRoleID); err != nil {
		return fmt.Errorf("revoking member role: %w", err)
	}
	ms.Trusted = false
	ms.Version++
	if err := c.db.PutMemberState(ms); err != nil {
		return err
	}
	c.logger.Info("member restricted", "guild", profile.ID, "member", mid, "version", ms.Version)
	return nil
}

// State - Current admission record for a member
func (c *Controller) State(gid, mid string) (database.MemberState, error) {
	return c.db.GetMemberState(gid, mid)
}

// Members admitted before the bot joined have no record, they count as
// restricted from now.
func (c *Controller) memberLocked(gid, mid string) (database.MemberState, error) {
	ms, err := c.db.GetMemberState(gid, mid)
	if err == nil {
		return ms, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return database.MemberState{}, err
	}
	return database.MemberState{
		GuildID:  gid,
		MemberID: mid,
		JoinedAt: time.Now().UTC(),
	}, nil
}
