package payments_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asigbo/portal/internal/app/features/payments"
	"github.com/asigbo/portal/internal/app/system/authz"
	"github.com/asigbo/portal/internal/app/system/storage"
	"github.com/asigbo/portal/internal/domain/models"
	"github.com/asigbo/portal/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*payments.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("building local storage: %v", err)
	}
	return payments.NewHandler(db, store, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestCreateFansOutToTargetPromotions(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	f.SetPromotionBounds(ctx, 2024, 2028)
	treasurer := f.CreateUser(ctx, "Tesorero", "Uno", 2025)
	student := f.CreateUser(ctx, "Estudiante", "Activo", 2026)
	f.CreateUser(ctx, "Graduado", "Viejo", 2015)

	body := map[string]interface{}{
		"description":      "Inscripcion anual",
		"amount":           150.0,
		"limitDate":        time.Now().UTC().Add(30 * 24 * time.Hour),
		"treasurers":       []string{treasurer.ID.Hex()},
		"targetPromotions": []string{"student"},
	}

	w := httptest.NewRecorder()
	h.HandleCreate(w, testutil.WithAdmin(testutil.JSONRequest(t, http.MethodPost, "/payment", body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create payment: got status %d, want 201: %s", w.Code, w.Body.String())
	}

	var created models.Payment
	testutil.DecodeJSON(t, w, &created)

	// Students only: the treasurer (2025) and the student (2026), not the
	// graduate.
	n, err := f.DB().Collection("payment_assignments").CountDocuments(ctx,
		bson.M{"payment._id": created.ID})
	if err != nil {
		t.Fatalf("counting assignments: %v", err)
	}
	if n != 2 {
		t.Fatalf("fan-out count: got %d, want 2", n)
	}
	sn, err := f.DB().Collection("payment_assignments").CountDocuments(ctx,
		bson.M{"payment._id": created.ID, "user._id": student.ID})
	if err != nil {
		t.Fatalf("counting assignments: %v", err)
	}
	if sn != 1 {
		t.Fatal("student missing their payment assignment")
	}

	if !contains(f.LoadUser(ctx, treasurer.ID).Roles, authz.RoleTreasurer) {
		t.Fatal("treasurer missing derived role")
	}
}

func TestActivityPaymentSkipsFanOut(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	f.SetPromotionBounds(ctx, 2024, 2028)
	treasurer := f.CreateUser(ctx, "Tesorero", "Dos", 2025)
	f.CreateUser(ctx, "Estudiante", "Activo", 2026)

	body := map[string]interface{}{
		"description":     "Cuota de actividad",
		"amount":          50.0,
		"limitDate":       time.Now().UTC().Add(7 * 24 * time.Hour),
		"treasurers":      []string{treasurer.ID.Hex()},
		"activityPayment": true,
	}

	w := httptest.NewRecorder()
	h.HandleCreate(w, testutil.WithAdmin(testutil.JSONRequest(t, http.MethodPost, "/payment", body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create activity payment: got status %d, want 201: %s", w.Code, w.Body.String())
	}

	var created models.Payment
	testutil.DecodeJSON(t, w, &created)
	n, err := f.DB().Collection("payment_assignments").CountDocuments(ctx,
		bson.M{"payment._id": created.ID})
	if err != nil {
		t.Fatalf("counting assignments: %v", err)
	}
	if n != 0 {
		t.Fatalf("activity payment must not fan out, got %d assignments", n)
	}
}

func TestUpdatePropagatesToAssignments(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	treasurer := f.CreateUser(ctx, "Tesorero", "Tres", 2025)
	member := f.CreateUser(ctx, "Miembro", "Uno", 2026)
	payment := f.CreatePayment(ctx, "Cuota vieja", 100, treasurer.Snapshot())

	if _, err := f.DB().Collection("payment_assignments").InsertOne(ctx, models.PaymentAssignment{
		User:    member.Snapshot(),
		Payment: payment.Snapshot(),
	}); err != nil {
		t.Fatalf("seeding assignment: %v", err)
	}

	req := testutil.JSONRequest(t, http.MethodPatch, "/payment/"+payment.ID.Hex(),
		map[string]interface{}{"description": "Cuota nueva", "amount": 125.0})
	req = testutil.WithChiURLParam(req, "paymentID", payment.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleUpdate(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update payment: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	var a models.PaymentAssignment
	if err := f.DB().Collection("payment_assignments").FindOne(ctx,
		bson.M{"payment._id": payment.ID}).Decode(&a); err != nil {
		t.Fatalf("loading assignment: %v", err)
	}
	if a.Payment.Description != "Cuota nueva" || a.Payment.Amount != 125.0 {
		t.Fatalf("assignment snapshot not updated: %+v", a.Payment)
	}
}

func TestDeleteCascadesAndRevokesRole(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	treasurer := f.CreateUser(ctx, "Tesorero", "Final", 2025)
	member := f.CreateUser(ctx, "Miembro", "Dos", 2026)
	payment := f.CreatePayment(ctx, "Temporal", 75, treasurer.Snapshot())
	if _, err := f.DB().Collection("users").UpdateOne(ctx,
		bson.M{"_id": treasurer.ID},
		bson.M{"$addToSet": bson.M{"roles": authz.RoleTreasurer}}); err != nil {
		t.Fatalf("seeding role: %v", err)
	}
	if _, err := f.DB().Collection("payment_assignments").InsertOne(ctx, models.PaymentAssignment{
		User:    member.Snapshot(),
		Payment: payment.Snapshot(),
	}); err != nil {
		t.Fatalf("seeding assignment: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/payment/"+payment.ID.Hex(), nil)
	req = testutil.WithChiURLParam(req, "paymentID", payment.ID.Hex())
	req = testutil.WithAdmin(req)

	w := httptest.NewRecorder()
	h.HandleDelete(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete payment: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	n, err := f.DB().Collection("payment_assignments").CountDocuments(ctx,
		bson.M{"payment._id": payment.ID})
	if err != nil {
		t.Fatalf("counting assignments: %v", err)
	}
	if n != 0 {
		t.Fatalf("assignments left after delete: %d", n)
	}
	if contains(f.LoadUser(ctx, treasurer.ID).Roles, authz.RoleTreasurer) {
		t.Fatal("treasurer role kept after the last payment was deleted")
	}
}

func TestVoucherUploadCompletesOwnAssignment(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	treasurer := f.CreateUser(ctx, "Tesorero", "Voucher", 2025)
	member := f.CreateUser(ctx, "Miembro", "Voucher", 2026)
	payment := f.CreatePayment(ctx, "Con voucher", 60, treasurer.Snapshot())
	if _, err := f.DB().Collection("payment_assignments").InsertOne(ctx, models.PaymentAssignment{
		User:    member.Snapshot(),
		Payment: payment.Snapshot(),
	}); err != nil {
		t.Fatalf("seeding assignment: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("voucher", "recibo 2026.jpg")
	if err != nil {
		t.Fatalf("building multipart: %v", err)
	}
	if _, err := part.Write([]byte("fake-jpeg-bytes")); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/payment/"+payment.ID.Hex()+"/voucher", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = testutil.WithChiURLParam(req, "paymentID", payment.ID.Hex())
	req = testutil.WithUser(req, member)

	w := httptest.NewRecorder()
	h.HandleUploadVoucher(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload voucher: got status %d, want 200: %s", w.Code, w.Body.String())
	}

	var a models.PaymentAssignment
	if err := f.DB().Collection("payment_assignments").FindOne(ctx,
		bson.M{"payment._id": payment.ID, "user._id": member.ID}).Decode(&a); err != nil {
		t.Fatalf("loading assignment: %v", err)
	}
	if !a.Completed || len(a.VoucherKeys) != 1 {
		t.Fatalf("assignment not completed by voucher: %+v", a)
	}
}

func TestConfirmByTreasurerOnly(t *testing.T) {
	h, f := newTestHandler(t)
	ctx := testutil.TestContext(t)

	treasurer := f.CreateUser(ctx, "Tesorero", "Confirma", 2025)
	outsider := f.CreateUser(ctx, "Otro", "Usuario", 2026)
	member := f.CreateUser(ctx, "Miembro", "Confirmado", 2026)
	payment := f.CreatePayment(ctx, "Confirmable", 80, treasurer.Snapshot())

	res, err := f.DB().Collection("payment_assignments").InsertOne(ctx, models.PaymentAssignment{
		User:    member.Snapshot(),
		Payment: payment.Snapshot(),
	})
	if err != nil {
		t.Fatalf("seeding assignment: %v", err)
	}
	assignmentID := res.InsertedID.(primitive.ObjectID).Hex()

	build := func(as models.User) *http.Request {
		req := testutil.JSONRequest(t, http.MethodPatch,
			"/payment/assignment/"+assignmentID+"/confirm",
			map[string]bool{"confirmed": true})
		req = testutil.WithChiURLParam(req, "assignmentID", assignmentID)
		return testutil.WithUser(req, as)
	}

	w := httptest.NewRecorder()
	h.HandleConfirm(w, build(outsider))
	if w.Code != http.StatusForbidden {
		t.Fatalf("outsider confirm: got status %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	h.HandleConfirm(w, build(treasurer))
	if w.Code != http.StatusOK {
		t.Fatalf("treasurer confirm: got status %d, want 200: %s", w.Code, w.Body.String())
	}
}

func contains(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
