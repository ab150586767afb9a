// internal/app/workflow/rolesync/rolesync.go

// Package rolesync keeps role tags and live sessions consistent with the
// responsibilities that imply them. Most role tags are derived state: a user
// carries asigboAreaResponsible, activityResponsible, or treasurer exactly
// while at least one matching responsibility exists. Admin is the only role
// granted explicitly.
//
// Session side effects follow from the privilege direction: gaining a role
// forces a token refresh (the old access token's claims understate the
// user's privileges, which is safe, but clients should pick the role up on
// their next refresh); losing a role or being blocked forces a full logout,
// because outstanding tokens would overstate privileges.
package rolesync

import (
	"context"

	"github.com/asigbo/portal/internal/app/store/activities"
	"github.com/asigbo/portal/internal/app/store/areas"
	"github.com/asigbo/portal/internal/app/store/payments"
	"github.com/asigbo/portal/internal/app/store/sessions"
	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Coordinator applies role changes and their session side effects.
type Coordinator struct {
	log        *zap.Logger
	users      *userstore.Store
	sessions   *sessionstore.Store
	areas      *areastore.Store
	activities *activitystore.Store
	payments   *paymentstore.Store
}

func New(db *mongo.Database, log *zap.Logger) *Coordinator {
	return &Coordinator{
		log:        log,
		users:      userstore.New(db),
		sessions:   sessionstore.New(db),
		areas:      areastore.New(db),
		activities: activitystore.New(db),
		payments:   paymentstore.New(db),
	}
}

// Grant adds a role tag. When the tag is new, refresh tokens are marked
// need_update and access tokens dropped so the next refresh carries the role.
func (c *Coordinator) Grant(ctx context.Context, userID primitive.ObjectID, role string) error {
	changed, err := c.users.AddRole(ctx, userID, role)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	c.log.Info("role granted",
		zap.String("user_id", userID.Hex()), zap.String("role", role))
	return c.sessions.ForceRefresh(ctx, userID)
}

// Revoke removes a role tag. When the tag was present, every session of the
// user is deleted: outstanding tokens still claim the revoked role.
func (c *Coordinator) Revoke(ctx context.Context, userID primitive.ObjectID, role string) error {
	changed, err := c.users.RemoveRole(ctx, userID, role)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	c.log.Info("role revoked, forcing logout",
		zap.String("user_id", userID.Hex()), zap.String("role", role))
	_, err = c.sessions.DeleteByUser(ctx, userID)
	return err
}

// ForceLogout deletes every session of a user. Used on block and on
// privilege-reducing changes outside role tags.
func (c *Coordinator) ForceLogout(ctx context.Context, userID primitive.ObjectID) error {
	n, err := c.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	if n > 0 {
		c.log.Info("forced logout",
			zap.String("user_id", userID.Hex()), zap.Int64("sessions_deleted", n))
	}
	return nil
}

// RecomputeAreaResponsible re-derives the asigboAreaResponsible tag from the
// user's current area responsibilities.
func (c *Coordinator) RecomputeAreaResponsible(ctx context.Context, userID primitive.ObjectID) error {
	count, err := c.areas.CountByResponsible(ctx, userID)
	if err != nil {
		return err
	}
	return c.applyDerived(ctx, userID, authz.RoleAreaResponsible, count > 0)
}

// RecomputeActivityResponsible re-derives the activityResponsible tag.
func (c *Coordinator) RecomputeActivityResponsible(ctx context.Context, userID primitive.ObjectID) error {
	count, err := c.activities.CountByResponsible(ctx, userID)
	if err != nil {
		return err
	}
	return c.applyDerived(ctx, userID, authz.RoleActivityResponsible, count > 0)
}

// RecomputeTreasurer re-derives the treasurer tag from the user's payment
// treasurer memberships.
func (c *Coordinator) RecomputeTreasurer(ctx context.Context, userID primitive.ObjectID) error {
	count, err := c.payments.CountByTreasurer(ctx, userID)
	if err != nil {
		return err
	}
	return c.applyDerived(ctx, userID, authz.RoleTreasurer, count > 0)
}

// RecomputeAll re-derives every responsibility-driven tag for a batch of
// users, e.g. after replacing an area's responsible list.
func (c *Coordinator) RecomputeAll(ctx context.Context, userIDs []primitive.ObjectID) error {
	for _, id := range userIDs {
		if err := c.RecomputeAreaResponsible(ctx, id); err != nil {
			return err
		}
		if err := c.RecomputeActivityResponsible(ctx, id); err != nil {
			return err
		}
		if err := c.RecomputeTreasurer(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) applyDerived(ctx context.Context, userID primitive.ObjectID, role string, shouldHold bool) error {
	if shouldHold {
		return c.Grant(ctx, userID, role)
	}
	return c.Revoke(ctx, userID, role)
}
