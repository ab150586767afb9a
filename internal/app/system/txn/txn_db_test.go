// internal/app/system/txn/txn_db_test.go
package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/asigbo/portal/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Handlers wrap whole workflows in Run while the workflows call Run
// themselves, so nested calls must join the outer transaction instead of
// fighting over sessions.
func TestRunNestedJoinsOuterTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	log := zap.NewNop()

	err := Run(ctx, db, log, func(ctx context.Context) error {
		if _, err := db.Collection("items").InsertOne(ctx, bson.M{"step": "outer"}); err != nil {
			return err
		}
		return Run(ctx, db, log, func(ctx context.Context) error {
			_, err := db.Collection("items").InsertOne(ctx, bson.M{"step": "inner"})
			return err
		})
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	n, err := db.Collection("items").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if n != 2 {
		t.Fatalf("documents committed = %d, want 2", n)
	}
}

func TestRunNestedErrorPropagates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	log := zap.NewNop()

	boom := errors.New("inner failure")
	err := Run(ctx, db, log, func(ctx context.Context) error {
		return Run(ctx, db, log, func(ctx context.Context) error {
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want the inner failure unchanged", err)
	}
}
