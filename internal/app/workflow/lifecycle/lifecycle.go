// internal/app/workflow/lifecycle/lifecycle.go

// Package lifecycle coordinates activity assignment state: registration,
// unregistration, completion changes, and the activity-deletion cascade.
// Every multi-document mutation runs inside txn.Run so capacity counters,
// assignment rows, payment assignments, and ledger rows move together.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/asigbo/portal/internal/app/store/activities"
	"github.com/asigbo/portal/internal/app/store/assignments"
	"github.com/asigbo/portal/internal/app/store/paymentassignments"
	"github.com/asigbo/portal/internal/app/store/promotions"
	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/txn"
	"github.com/asigbo/portal/internal/app/workflow/ledger"
	"github.com/asigbo/portal/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Manager runs assignment lifecycle transitions.
type Manager struct {
	db          *mongo.Database
	log         *zap.Logger
	users       *userstore.Store
	activities  *activitystore.Store
	assignments *assignmentstore.Store
	payments    *pastore.Store
	promotions  *promotionstore.Store
	ledger      *ledger.Ledger
}

func New(db *mongo.Database, log *zap.Logger) *Manager {
	return &Manager{
		db:          db,
		log:         log,
		users:       userstore.New(db),
		activities:  activitystore.New(db),
		assignments: assignmentstore.New(db),
		payments:    pastore.New(db),
		promotions:  promotionstore.New(db),
		ledger:      ledger.New(db, log),
	}
}

// AssignInput describes one registration request.
type AssignInput struct {
	UserID     primitive.ObjectID
	ActivityID primitive.ObjectID

	// Completed and AdditionalHours let a responsible record an assignment
	// that is already done (e.g. backfilling past activities).
	Completed       bool
	AdditionalHours int

	// EnforceWindow applies the registration-window check. Self-registration
	// sets it; responsibles and admins assign outside the window.
	EnforceWindow bool
}

// Assign registers a user for an activity. It validates user and activity
// state, claims a space with a conditional decrement, inserts the assignment
// row, creates the linked payment assignment for payment-linked activities,
// and credits the ledger when the assignment is born completed.
func (m *Manager) Assign(ctx context.Context, in AssignInput) (*models.ActivityAssignment, error) {
	var out *models.ActivityAssignment
	err := txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		user, activity, err := m.validateCandidate(ctx, in.UserID, in.ActivityID, in.EnforceWindow)
		if err != nil {
			return err
		}

		if err := m.activities.TakeSpaces(ctx, activity.ID, 1); err != nil {
			if errors.Is(err, activitystore.ErrNoCapacity) {
				return apierr.Conflict("the activity has no available spaces left")
			}
			return err
		}

		a := models.ActivityAssignment{
			User:                   user.Snapshot(),
			Activity:               activity.Snapshot(),
			Completed:              in.Completed,
			AdditionalServiceHours: in.AdditionalHours,
		}
		created, err := m.assignments.Create(ctx, a)
		if err != nil {
			if errors.Is(err, assignmentstore.ErrDuplicateAssignment) {
				return apierr.Conflict("the user is already assigned to this activity")
			}
			return err
		}

		if activity.Payment != nil {
			if err := m.ensurePaymentAssignment(ctx, user, activity, created.ID); err != nil {
				return err
			}
		}

		if in.Completed {
			_, add := ledger.CompletionDelta(activity.ServiceHours,
				ledger.Completion{},
				ledger.Completion{Completed: true, AdditionalHours: in.AdditionalHours})
			if add > 0 {
				if err := m.ledger.Apply(ctx, user.ID, activity.AsigboArea.ID, 0, add); err != nil {
					return err
				}
			}
		}

		out = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AssignMany registers a batch of users in one transaction. Validation is
// all-or-nothing: any ineligible user aborts the batch before a space is
// claimed.
func (m *Manager) AssignMany(ctx context.Context, activityID primitive.ObjectID, userIDs []primitive.ObjectID, completed bool) ([]models.ActivityAssignment, error) {
	if len(userIDs) == 0 {
		return nil, apierr.BadRequest("no users to assign")
	}

	var out []models.ActivityAssignment
	err := txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		activity, err := m.loadActivity(ctx, activityID)
		if err != nil {
			return err
		}

		bounds := m.loadBounds(ctx)
		users, err := m.users.GetManyByID(ctx, userIDs)
		if err != nil {
			return err
		}
		if len(users) != len(userIDs) {
			return apierr.NotFound("one or more users not found")
		}
		for i := range users {
			if err := checkEligibility(&users[i], activity, bounds); err != nil {
				return err
			}
		}

		if err := m.activities.TakeSpaces(ctx, activity.ID, len(users)); err != nil {
			if errors.Is(err, activitystore.ErrNoCapacity) {
				return apierr.Conflict("the activity does not have enough available spaces")
			}
			return err
		}

		list := make([]models.ActivityAssignment, 0, len(users))
		for i := range users {
			list = append(list, models.ActivityAssignment{
				User:      users[i].Snapshot(),
				Activity:  activity.Snapshot(),
				Completed: completed,
			})
		}
		if err := m.assignments.CreateMany(ctx, list); err != nil {
			if errors.Is(err, assignmentstore.ErrDuplicateAssignment) {
				return apierr.Conflict("one or more users are already assigned to this activity")
			}
			return err
		}

		if completed && activity.ServiceHours > 0 {
			for i := range users {
				if err := m.ledger.Apply(ctx, users[i].ID, activity.AsigboArea.ID, 0, activity.ServiceHours); err != nil {
					return err
				}
			}
		}

		out = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Unassign removes a user's assignment, returns the claimed space, debits
// the ledger if the assignment was completed, and removes a payment
// assignment created by the registration.
func (m *Manager) Unassign(ctx context.Context, userID, activityID primitive.ObjectID) error {
	return txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		a, err := m.assignments.Delete(ctx, userID, activityID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apierr.NotFound("the user is not assigned to this activity")
			}
			return err
		}

		if err := m.activities.ReleaseSpaces(ctx, activityID, 1); err != nil {
			// The activity may have been deleted concurrently; the assignment
			// cascade owns that case.
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return err
			}
		}

		if a.PaymentAssignmentID != nil {
			if _, err := m.payments.Delete(ctx, *a.PaymentAssignmentID); err != nil {
				return err
			}
		}

		if a.Completed {
			remove, _ := ledger.CompletionDelta(a.Activity.ServiceHours,
				ledger.Completion{Completed: true, AdditionalHours: a.AdditionalServiceHours},
				ledger.Completion{})
			if remove > 0 {
				return m.ledger.Apply(ctx, userID, a.Activity.AsigboArea.ID, remove, 0)
			}
		}
		return nil
	})
}

// UpdateCompletion transitions an assignment's completion state and applies
// the resulting ledger delta. Both fields are optional: a nil completed or
// additionalHours keeps the assignment's stored value, so a bare
// {"completed": true} credits the prior additional hours rather than wiping
// them.
func (m *Manager) UpdateCompletion(ctx context.Context, userID, activityID primitive.ObjectID, completed *bool, additionalHours *int) (*models.ActivityAssignment, error) {
	var out *models.ActivityAssignment
	err := txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		a, err := m.assignments.Get(ctx, userID, activityID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apierr.NotFound("the user is not assigned to this activity")
			}
			return err
		}

		nextCompleted := a.Completed
		if completed != nil {
			nextCompleted = *completed
		}
		nextAdditional := a.AdditionalServiceHours
		if additionalHours != nil {
			nextAdditional = *additionalHours
		}

		prior := ledger.Completion{Completed: a.Completed, AdditionalHours: a.AdditionalServiceHours}
		next := ledger.Completion{Completed: nextCompleted, AdditionalHours: nextAdditional}

		if err := m.assignments.SetCompletion(ctx, a.ID, nextCompleted, nextAdditional); err != nil {
			return err
		}

		remove, add := ledger.CompletionDelta(a.Activity.ServiceHours, prior, next)
		if remove != 0 || add != 0 {
			if err := m.ledger.Apply(ctx, userID, a.Activity.AsigboArea.ID, remove, add); err != nil {
				return err
			}
		}

		a.Completed = nextCompleted
		a.AdditionalServiceHours = nextAdditional
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteActivity removes an activity with its assignment cascade: every
// assignment row is deleted and completed ones are debited from their users'
// ledgers.
func (m *Manager) DeleteActivity(ctx context.Context, activityID primitive.ObjectID) error {
	return txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		deleted, err := m.assignments.DeleteByActivity(ctx, activityID)
		if err != nil {
			return err
		}
		for i := range deleted {
			a := &deleted[i]
			if a.PaymentAssignmentID != nil {
				if _, err := m.payments.Delete(ctx, *a.PaymentAssignmentID); err != nil {
					return err
				}
			}
			if !a.Completed {
				continue
			}
			remove, _ := ledger.CompletionDelta(a.Activity.ServiceHours,
				ledger.Completion{Completed: true, AdditionalHours: a.AdditionalServiceHours},
				ledger.Completion{})
			if remove > 0 {
				if err := m.ledger.Apply(ctx, a.User.ID, a.Activity.AsigboArea.ID, remove, 0); err != nil {
					return err
				}
			}
		}

		n, err := m.activities.Delete(ctx, activityID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apierr.NotFound("activity not found")
		}
		return nil
	})
}

// ReviseActivityHours re-credits completed assignments after an activity's
// base service hours change: each completed assignment is debited at the old
// rate and credited at the new one, keeping additional hours intact.
func (m *Manager) ReviseActivityHours(ctx context.Context, activityID primitive.ObjectID, oldHours, newHours int) error {
	if oldHours == newHours {
		return nil
	}
	return txn.Run(ctx, m.db, m.log, func(ctx context.Context) error {
		list, err := m.assignments.ListByActivity(ctx, activityID)
		if err != nil {
			return err
		}
		for i := range list {
			a := &list[i]
			if !a.Completed {
				continue
			}
			done := ledger.Completion{Completed: true, AdditionalHours: a.AdditionalServiceHours}
			remove, _ := ledger.CompletionDelta(oldHours, done, ledger.Completion{})
			_, add := ledger.CompletionDelta(newHours, ledger.Completion{}, done)
			if err := m.ledger.Apply(ctx, a.User.ID, a.Activity.AsigboArea.ID, remove, add); err != nil {
				return err
			}
		}
		return nil
	})
}

// validateCandidate loads and checks the user/activity pair for registration.
func (m *Manager) validateCandidate(ctx context.Context, userID, activityID primitive.ObjectID, enforceWindow bool) (*models.User, *models.Activity, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, apierr.NotFound("user not found")
		}
		return nil, nil, err
	}
	if user.Blocked {
		return nil, nil, apierr.Forbidden("the user is blocked")
	}

	activity, err := m.loadActivity(ctx, activityID)
	if err != nil {
		return nil, nil, err
	}
	if enforceWindow && !activity.RegistrationOpen(time.Now()) {
		return nil, nil, apierr.Forbidden("the registration window for this activity is closed")
	}

	if err := checkEligibility(user, activity, m.loadBounds(ctx)); err != nil {
		return nil, nil, err
	}
	return user, activity, nil
}

func (m *Manager) loadActivity(ctx context.Context, id primitive.ObjectID) (*models.Activity, error) {
	activity, err := m.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierr.NotFound("activity not found")
		}
		return nil, err
	}
	if activity.Blocked {
		return nil, apierr.Forbidden("the activity is blocked")
	}
	return activity, nil
}

// loadBounds returns the current-student bounds, or a zero value when they
// were never configured (every promotion then counts as graduate, and only
// literal-year filters match).
func (m *Manager) loadBounds(ctx context.Context) *models.Promotion {
	bounds, err := m.promotions.Get(ctx)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			m.log.Warn("loading promotion bounds failed", zap.Error(err))
		}
		return &models.Promotion{}
	}
	return bounds
}

func checkEligibility(user *models.User, activity *models.Activity, bounds *models.Promotion) error {
	if user.Blocked {
		return apierr.Forbidden("the user is blocked")
	}
	if !bounds.MatchesFilter(activity.ParticipatingPromotions, user.Promotion) {
		return apierr.Forbidden("the user's promotion is not eligible for this activity")
	}
	return nil
}

// ensurePaymentAssignment creates (or reuses) the payment assignment tied to
// a payment-linked activity registration and links it on the assignment row.
func (m *Manager) ensurePaymentAssignment(ctx context.Context, user *models.User, activity *models.Activity, assignmentID primitive.ObjectID) error {
	pa, err := m.payments.Create(ctx, user.Snapshot(), *activity.Payment)
	if err != nil {
		if !errors.Is(err, pastore.ErrDuplicateAssignment) {
			return err
		}
		existing, err := m.payments.Get(ctx, user.ID, activity.Payment.ID)
		if err != nil {
			return err
		}
		pa = *existing
	}
	return m.assignments.SetPaymentAssignment(ctx, assignmentID, pa.ID)
}
