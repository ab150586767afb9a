// internal/app/features/users/handler.go

// Package users implements member accounts: admin CRUD and bulk import,
// registration completion, password recovery, blocking, the explicit admin
// role, profile images, and service-hour reports.
package users

import (
	"github.com/asigbo/portal/internal/app/store/activities"
	"github.com/asigbo/portal/internal/app/store/areas"
	"github.com/asigbo/portal/internal/app/store/assignments"
	"github.com/asigbo/portal/internal/app/store/paymentassignments"
	"github.com/asigbo/portal/internal/app/store/sessions"
	"github.com/asigbo/portal/internal/app/store/users"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/mailer"
	"github.com/asigbo/portal/internal/app/system/storage"
	"github.com/asigbo/portal/internal/app/workflow/propagate"
	"github.com/asigbo/portal/internal/app/workflow/rolesync"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the feature-level entry point for user endpoints.
type Handler struct {
	DB          *mongo.Database
	Users       *userstore.Store
	Sessions    *sessionstore.Store
	Areas       *areastore.Store
	Activities  *activitystore.Store
	Assignments *assignmentstore.Store
	PayAssigns  *pastore.Store

	Auth       *auth.Manager
	Mailer     *mailer.Mailer
	Storage    storage.Store
	Propagator *propagate.Propagator
	Roles      *rolesync.Coordinator

	// SiteName and BaseURL shape outgoing registration/recovery emails.
	SiteName string
	BaseURL  string

	Log *zap.Logger
}

func NewHandler(db *mongo.Database, authMgr *auth.Manager, mail *mailer.Mailer, store storage.Store, siteName, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Users:       userstore.New(db),
		Sessions:    sessionstore.New(db),
		Areas:       areastore.New(db),
		Activities:  activitystore.New(db),
		Assignments: assignmentstore.New(db),
		PayAssigns:  pastore.New(db),
		Auth:        authMgr,
		Mailer:      mail,
		Storage:     store,
		Propagator:  propagate.New(db, logger),
		Roles:       rolesync.New(db, logger),
		SiteName:    siteName,
		BaseURL:     baseURL,
		Log:         logger,
	}
}
