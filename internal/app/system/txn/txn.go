// internal/app/system/txn/txn.go

// Package txn runs multi-document workflows atomically. Every workflow that
// touches more than one collection (assign/unassign/complete, denormalized
// propagation, role side-effects) goes through Run so either every write
// commits or none do.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Run executes fn inside a MongoDB multi-document transaction. The context
// passed to fn is a session context; all reads and writes made with it join
// the transaction. If fn returns an error the transaction is aborted and the
// error is returned unchanged.
//
// Run is re-entrant: when ctx already carries a session (the caller is
// itself inside Run), fn joins the ambient transaction instead of starting a
// nested one. This lets handlers wrap a whole workflow while the workflow's
// own Run calls still work standalone.
//
// On deployments without transaction support (standalone mongod, common in
// dev), Run falls back to executing fn without a transaction and logs a
// warning. Production deployments run against replica sets where the
// fallback never triggers.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	client := db.Client()

	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			log.Warn("mongo sessions unavailable; running without transaction", zap.Error(err))
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		log.Warn("mongo transactions unavailable; running without transaction", zap.Error(err))
		return fn(ctx)
	}
	return err
}

// Server codes that indicate the deployment cannot run transactions.
var notSupportedCodes = map[int32]bool{
	20:  true, // IllegalOperation
	51:  true, // standalone "cannot start transaction"
	263: true, // OperationNotSupportedInTransaction
}

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions (as opposed to the transaction failing).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if notSupportedCodes[ce.Code] {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") {
		if strings.Contains(msg, "replica set") ||
			strings.Contains(msg, "session") ||
			strings.Contains(msg, "illegal operation") {
			return true
		}
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	return false
}
