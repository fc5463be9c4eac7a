package test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/skillhive/skillhive/api/web"
	"github.com/skillhive/skillhive/core/course"
	"github.com/skillhive/skillhive/core/enrollment"
	"github.com/skillhive/skillhive/core/payment"
)

// mockRazorpay stands in for the Razorpay order endpoint. It hands out
// sequential order ids and remembers the last request for assertions.
type mockRazorpay struct {
	mu     sync.Mutex
	orders int
	last   map[string]any
}

func (m *mockRazorpay) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		m.mu.Lock()
		m.orders++
		id := fmt.Sprintf("order_test_%d", m.orders)
		m.last = in
		m.mu.Unlock()

		out := map[string]any{
			"id":       id,
			"entity":   "order",
			"amount":   in["amount"],
			"currency": in["currency"],
			"receipt":  in["receipt"],
			"status":   "created",
		}
		web.Respond(context.Background(), w, out, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/orders", create).Methods("POST")
	return r
}

func (m *mockRazorpay) lastOrder() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type paymentTest struct {
	*TestEnv
}

type checkout struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	KeyID       string `json:"keyId"`
	CourseTitle string `json:"courseTitle"`
}

type verified struct {
	Enrollment enrollment.Enrollment `json:"enrollment"`
	Order      payment.Order         `json:"order"`
}

// createOrderOK opens a checkout for the logged-in user.
func (pt *paymentTest) createOrderOK(t *testing.T, courseID int64) checkout {
	t.Helper()

	body := fmt.Sprintf(`{"courseId":%d}`, courseID)

	r, err := http.NewRequest(http.MethodPost, pt.URL+"/course/payment/create-order", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := pt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't create payment order: status code %s", w.Status)
	}

	var out checkout
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("cannot unmarshal checkout: %v", err)
	}
	return out
}

// verifyEnroll posts a confirmation and returns the status code plus the
// decoded body on success.
func (pt *paymentTest) verifyEnroll(t *testing.T, conf payment.Confirmation) (int, verified) {
	t.Helper()

	b, err := json.Marshal(conf)
	if err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPost, pt.URL+"/course/payment/verify-enroll", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := pt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	var out verified
	if w.StatusCode == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatalf("cannot unmarshal verification: %v", err)
		}
	}
	return w.StatusCode, out
}

func TestPayment(t *testing.T) {
	env, err := NewTestEnv(t, "payment_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	rt := &cartTest{env}
	pt := &paymentTest{env}

	c := ct.createCourseOK(t, 499)
	rt.createItemOK(t, c.ID)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	out := pt.createOrderOK(t, c.ID)

	if out.Amount != 49900 {
		t.Fatalf("gateway amount must be the price in paise: got %d, want 49900", out.Amount)
	}
	if out.Currency != "INR" {
		t.Fatalf("unexpected currency %q", out.Currency)
	}
	if out.KeyID != GatewayKeyID {
		t.Fatalf("checkout must carry the public key id, got %q", out.KeyID)
	}

	sent := env.Razorpay.lastOrder()
	if got := sent["amount"].(float64); got != 49900 {
		t.Fatalf("gateway saw amount %v, want 49900", got)
	}
	receipt := sent["receipt"].(string)
	prefix := fmt.Sprintf("receipt_course_%d_user_%d_", c.ID, env.User.ID)
	if !strings.HasPrefix(receipt, prefix) {
		t.Fatalf("receipt %q does not start with %q", receipt, prefix)
	}

	conf := payment.Confirmation{
		OrderID:   out.OrderID,
		PaymentID: "pay_test_1",
		Signature: payment.Signature(GatewaySecret, out.OrderID, "pay_test_1"),
		CourseID:  c.ID,
	}

	code, res := pt.verifyEnroll(t, conf)
	if code != http.StatusOK {
		t.Fatalf("verification failed: status code %d", code)
	}
	if res.Order.Status != payment.Paid {
		t.Fatalf("order status after verification: got %s, want %s", res.Order.Status, payment.Paid)
	}
	if res.Enrollment.CourseID != c.ID || res.Enrollment.UserID != env.User.ID {
		t.Fatalf("enrollment granted to the wrong pair: %+v", res.Enrollment)
	}
	if res.Enrollment.OrderID == nil || *res.Enrollment.OrderID != res.Order.ID {
		t.Fatal("a paid enrollment must reference its order")
	}

	// Retrying the same confirmation must hand back the same grant.
	code, again := pt.verifyEnroll(t, conf)
	if code != http.StatusOK {
		t.Fatalf("repeated verification failed: status code %d", code)
	}
	if again.Enrollment.ID != res.Enrollment.ID {
		t.Fatalf("repeated verification minted a second enrollment: %d then %d", res.Enrollment.ID, again.Enrollment.ID)
	}

	ctx := context.Background()
	if n, err := enrollment.CountByCourse(ctx, env.DB, c.ID); err != nil || n != 1 {
		t.Fatalf("enrollment count after repeated verification: got %d (%v), want 1", n, err)
	}

	rt.listItemsOK(t, []int64{})
	ct.listCoursesOwnedOK(t, []int64{c.ID})

	// The sale shows up on the instructor dashboard.
	if err := Login(env.Server, env.InstructorEmail, env.InstructorPass); err != nil {
		t.Fatal(err)
	}
	sts := env.analyticsOK(t)
	if len(sts) != 1 || sts[0].Enrollments != 1 || sts[0].Revenue != 499 {
		t.Fatalf("unexpected instructor stats: %+v", sts)
	}

	// A second learner joining must raise the enrollment count without
	// touching revenue.
	now := time.Now().UTC()
	if _, err := enrollment.Create(ctx, env.DB, enrollment.Enrollment{
		UserID:         env.Admin.ID,
		CourseID:       c.ID,
		LastAccessedAt: now,
		CreatedAt:      now,
	}); err != nil {
		t.Fatal(err)
	}

	sts = env.analyticsOK(t)
	if len(sts) != 1 || sts[0].Enrollments != 2 {
		t.Fatalf("stats after second enrollment: %+v", sts)
	}
	if sts[0].Revenue != 499 {
		t.Fatalf("revenue must track paid orders, not enrollments: got %d, want 499", sts[0].Revenue)
	}
}

func (te *TestEnv) analyticsOK(t *testing.T) []course.Stats {
	t.Helper()

	r, err := http.NewRequest(http.MethodGet, te.URL+"/course/analytics", nil)
	if err != nil {
		t.Fatal(err)
	}

	w, err := te.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't fetch analytics: status code %s", w.Status)
	}

	var sts []course.Stats
	if err := json.NewDecoder(w.Body).Decode(&sts); err != nil {
		t.Fatalf("cannot unmarshal stats: %v", err)
	}
	return sts
}

func TestPaymentSignatureFailure(t *testing.T) {
	env, err := NewTestEnv(t, "payment_sig_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	pt := &paymentTest{env}

	c := ct.createCourseOK(t, 250)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	out := pt.createOrderOK(t, c.ID)

	tampered := payment.Confirmation{
		OrderID:   out.OrderID,
		PaymentID: "pay_test_2",
		Signature: payment.Signature("not-the-secret", out.OrderID, "pay_test_2"),
		CourseID:  c.ID,
	}

	code, _ := pt.verifyEnroll(t, tampered)
	if code != http.StatusBadRequest {
		t.Fatalf("tampered confirmation: got status %d, want 400", code)
	}

	ctx := context.Background()

	ord, err := payment.FetchByGatewayOrderID(ctx, env.DB, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if ord.Status != payment.FailedSignature {
		t.Fatalf("order status after tampering: got %s, want %s", ord.Status, payment.FailedSignature)
	}
	if ord.GatewayPaymentID == nil || *ord.GatewayPaymentID != "pay_test_2" {
		t.Fatal("the supplied payment id must be kept for audit")
	}

	if _, err := enrollment.Fetch(ctx, env.DB, env.User.ID, c.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("a tampered confirmation must not grant access, got %v", err)
	}

	// The failure is terminal: even a genuine confirmation cannot revive
	// the order.
	genuine := payment.Confirmation{
		OrderID:   out.OrderID,
		PaymentID: "pay_test_2",
		Signature: payment.Signature(GatewaySecret, out.OrderID, "pay_test_2"),
		CourseID:  c.ID,
	}
	if code, _ := pt.verifyEnroll(t, genuine); code != http.StatusBadRequest {
		t.Fatalf("confirmation against a failed order: got status %d, want 400", code)
	}
}

func TestPaymentOwnership(t *testing.T) {
	env, err := NewTestEnv(t, "payment_owner_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	pt := &paymentTest{env}

	c := ct.createCourseOK(t, 300)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	out := pt.createOrderOK(t, c.ID)
	if err := Logout(env.Server); err != nil {
		t.Fatal(err)
	}

	conf := payment.Confirmation{
		OrderID:   out.OrderID,
		PaymentID: "pay_test_3",
		Signature: payment.Signature(GatewaySecret, out.OrderID, "pay_test_3"),
		CourseID:  c.ID,
	}

	// A different authenticated user replays the genuine confirmation.
	if err := Login(env.Server, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	code, _ := pt.verifyEnroll(t, conf)
	if code != http.StatusForbidden {
		t.Fatalf("foreign confirmation: got status %d, want 403", code)
	}

	ctx := context.Background()

	ord, err := payment.FetchByGatewayOrderID(ctx, env.DB, out.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if ord.Status != payment.Created {
		t.Fatalf("a rejected confirmation must not move the order, got %s", ord.Status)
	}

	if _, err := enrollment.Fetch(ctx, env.DB, env.Admin.ID, c.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("the impostor must not be enrolled, got %v", err)
	}
	if _, err := enrollment.Fetch(ctx, env.DB, env.User.ID, c.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("the owner must not be enrolled either, got %v", err)
	}
}

func TestVerifyConcurrentGrant(t *testing.T) {
	env, err := NewTestEnv(t, "payment_concurrent_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	pt := &paymentTest{env}

	c := ct.createCourseOK(t, 350)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	out := pt.createOrderOK(t, c.ID)

	// Another verification for the same pair already inserted the
	// enrollment. The confirmation must land on that row instead of
	// failing on the unique index.
	ctx := context.Background()
	now := time.Now().UTC()
	won, err := enrollment.Create(ctx, env.DB, enrollment.Enrollment{
		UserID:         env.User.ID,
		CourseID:       c.ID,
		LastAccessedAt: now,
		CreatedAt:      now,
	})
	if err != nil {
		t.Fatal(err)
	}

	conf := payment.Confirmation{
		OrderID:   out.OrderID,
		PaymentID: "pay_test_4",
		Signature: payment.Signature(GatewaySecret, out.OrderID, "pay_test_4"),
		CourseID:  c.ID,
	}

	code, res := pt.verifyEnroll(t, conf)
	if code != http.StatusOK {
		t.Fatalf("verification against an existing grant: got status %d, want 200", code)
	}
	if res.Enrollment.ID != won.ID {
		t.Fatalf("verification must hand back the existing enrollment: got %d, want %d", res.Enrollment.ID, won.ID)
	}

	if n, err := enrollment.CountByCourse(ctx, env.DB, c.ID); err != nil || n != 1 {
		t.Fatalf("enrollment count: got %d (%v), want 1", n, err)
	}
}

func TestCreateOrderRejections(t *testing.T) {
	env, err := NewTestEnv(t, "payment_reject_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	et := &enrollmentTest{env}

	free := ct.createCourseOK(t, 0)
	paid := ct.createCourseOK(t, 150)

	et.enrollOK(t, free.ID, http.StatusCreated)

	// The free path must not hand out priced courses.
	et.enrollOK(t, paid.ID, http.StatusBadRequest)

	if err := Login(env.Server, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(env.Server)

	if code := env.createOrder(t, free.ID); code != http.StatusBadRequest {
		t.Fatalf("free course checkout: got status %d, want 400", code)
	}

	if code := env.createOrder(t, 424242); code != http.StatusNotFound {
		t.Fatalf("unknown course checkout: got status %d, want 404", code)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	if _, err := enrollment.Create(ctx, env.DB, enrollment.Enrollment{
		UserID:         env.User.ID,
		CourseID:       paid.ID,
		LastAccessedAt: now,
		CreatedAt:      now,
	}); err != nil {
		t.Fatal(err)
	}

	if code := env.createOrder(t, paid.ID); code != http.StatusBadRequest {
		t.Fatalf("checkout while enrolled: got status %d, want 400", code)
	}
}

func (te *TestEnv) createOrder(t *testing.T, courseID int64) int {
	t.Helper()

	body := fmt.Sprintf(`{"courseId":%d}`, courseID)

	r, err := http.NewRequest(http.MethodPost, te.URL+"/course/payment/create-order", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := te.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	return w.StatusCode
}
