//go:build integration

package test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vinabook/bookshop/internal/auth"
	"github.com/vinabook/bookshop/internal/cart"
	"github.com/vinabook/bookshop/internal/checkout"
	"github.com/vinabook/bookshop/internal/domain"
	"github.com/vinabook/bookshop/internal/inventory"
	"github.com/vinabook/bookshop/internal/loyalty"
	"github.com/vinabook/bookshop/internal/messaging"
	"github.com/vinabook/bookshop/internal/orders"
	"github.com/vinabook/bookshop/internal/users"
	"github.com/vinabook/bookshop/internal/worker"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to+": "+subject)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return ""
	}
	return n.sent[len(n.sent)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUserWithRole(t *testing.T, db *sql.DB, username, role string) string {
	t.Helper()

	id := uuid.New().String()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO users (id, email, username, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, id, username+"@example.com", username, string(hash), role)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	return id
}

func seedUser(t *testing.T, db *sql.DB, username string) string {
	t.Helper()
	return seedUserWithRole(t, db, username, "user")
}

func seedOrderAt(t *testing.T, db *sql.DB, userID, bookID string, quantity int, price float64, createdAt string) string {
	t.Helper()

	orderID := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO orders (id, user_id, book_id, client_name, phone, address, status, created_at)
		VALUES ($1, $2, $3, 'Seed Client', '0123456789', '1 Seed Street', 'pending', $4::timestamptz)
	`, orderID, userID, bookID, createdAt)
	if err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO order_details (id, order_id, book_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), orderID, bookID, quantity, price)
	if err != nil {
		t.Fatalf("failed to seed order detail: %v", err)
	}

	return orderID
}

func seedBook(t *testing.T, db *sql.DB, name string, price float64, quantity *int) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO books (id, name, price, description, quantity)
		VALUES ($1, $2, $3, 'a book', $4)
	`, id, name, price, quantity)
	if err != nil {
		t.Fatalf("failed to seed book: %v", err)
	}

	return id
}

func bookStock(t *testing.T, db *sql.DB, bookID string) *int {
	t.Helper()

	var quantity *int
	if err := db.QueryRow(`SELECT quantity FROM books WHERE id = $1`, bookID).Scan(&quantity); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return quantity
}

func intPtr(v int) *int { return &v }

func newCheckoutService(t *testing.T, db *sql.DB, notifier *recordingNotifier, producer *messaging.Producer) *checkout.Service {
	t.Helper()

	service, err := checkout.NewService(
		db,
		users.NewRepository(db),
		cart.NewRepository(db),
		inventory.NewLedger(db),
		loyalty.NewEngine(db),
		orders.NewRepository(db),
		notifier,
		producer,
		testLogger(),
	)
	if err != nil {
		t.Fatalf("failed to create checkout service: %v", err)
	}

	return service
}

var recipient = domain.RecipientInfo{
	ClientName: "Alice Nguyen",
	Phone:      "0123456789",
	Address:    "1 Library Street",
}

func TestDirectCheckoutAccruesAndDecrements(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "alice")
	bookID := seedBook(t, db, "The Go Programming Language", 10.0, intPtr(30))

	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	lines, err := service.CheckoutDirect(ctx, userID, bookID, 25, recipient)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Price != 10.0 || lines[0].Quantity != 25 {
		t.Fatalf("unexpected line: %+v", lines[0])
	}

	if stock := bookStock(t, db, bookID); stock == nil || *stock != 5 {
		t.Fatalf("expected stock 5, got %v", stock)
	}

	engine := loyalty.NewEngine(db)
	points, level, err := engine.Summary(ctx, userID)
	if err != nil {
		t.Fatalf("failed to read loyalty summary: %v", err)
	}
	if points != 25 {
		t.Fatalf("expected 25 points, got %d", points)
	}
	if level != domain.LevelFamiliar {
		t.Fatalf("expected familiar level, got %d", level)
	}

	order, err := orders.NewRepository(db).GetByID(ctx, lines[0].OrderID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if order.Detail.Quantity != 25 || order.Detail.Price != 10.0 {
		t.Fatalf("unexpected detail: %+v", order.Detail)
	}

	// A later price change must not touch the recorded snapshot.
	if _, err := db.Exec(`UPDATE books SET price = 99.0 WHERE id = $1`, bookID); err != nil {
		t.Fatalf("failed to update price: %v", err)
	}
	order, err = orders.NewRepository(db).GetByID(ctx, lines[0].OrderID)
	if err != nil {
		t.Fatalf("failed to refetch order: %v", err)
	}
	if order.Detail.Price != 10.0 {
		t.Fatalf("price snapshot changed: %v", order.Detail.Price)
	}

	if notifier.count() != 1 {
		t.Fatalf("expected 1 confirmation email, got %d", notifier.count())
	}
}

func TestDirectCheckoutInsufficientStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "bob")
	bookID := seedBook(t, db, "Learning SQL", 20.0, intPtr(3))

	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	_, err = service.CheckoutDirect(ctx, userID, bookID, 5, recipient)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 3 || stockErr.Requested != 5 {
		t.Fatalf("unexpected stock error: %+v", stockErr)
	}

	// Nothing may have been written.
	if stock := bookStock(t, db, bookID); stock == nil || *stock != 3 {
		t.Fatalf("stock changed on failed checkout: %v", stock)
	}

	var orderCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}

	points, _, err := loyalty.NewEngine(db).Summary(ctx, userID)
	if err != nil {
		t.Fatalf("failed to read loyalty summary: %v", err)
	}
	if points != 0 {
		t.Fatalf("expected 0 points, got %d", points)
	}

	if notifier.count() != 0 {
		t.Fatalf("expected no emails, got %d", notifier.count())
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	bookID := seedBook(t, db, "Designing Data-Intensive Applications", 45.0, intPtr(10))
	userA := seedUser(t, db, "carol")
	userB := seedUser(t, db, "dave")

	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, userID := range []string{userA, userB} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := service.CheckoutDirect(ctx, id, bookID, 6, recipient)
			results <- err
		}(userID)
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			rejected++
			continue
		}
		t.Fatalf("unexpected error: %v", err)
	}

	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected exactly one winner, got %d succeeded / %d rejected", succeeded, rejected)
	}

	if stock := bookStock(t, db, bookID); stock == nil || *stock != 4 {
		t.Fatalf("expected stock 4, got %v", stock)
	}
}

func TestCheckoutUntrackedStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "erin")
	bookID := seedBook(t, db, "Print-on-Demand Essays", 5.0, nil)

	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	lines, err := service.CheckoutDirect(ctx, userID, bookID, 3, recipient)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	// Untracked stock is never decremented.
	if stock := bookStock(t, db, bookID); stock != nil {
		t.Fatalf("expected quantity to stay NULL, got %v", *stock)
	}
}

func TestCartConsolidation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "frank")
	bookID := seedBook(t, db, "Clean Architecture", 30.0, intPtr(10))

	repo := cart.NewRepository(db)
	if _, err := repo.AddItem(ctx, userID, bookID, 1); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	item, err := repo.AddItem(ctx, userID, bookID, 1)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if item.Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %d", item.Quantity)
	}

	items, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single consolidated line, got %d", len(items))
	}
}

func TestCartCheckoutMultiLineAbort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "grace")
	bookA := seedBook(t, db, "Book A", 10.0, intPtr(10))
	bookB := seedBook(t, db, "Book B", 10.0, intPtr(2))

	repo := cart.NewRepository(db)
	lineA, err := repo.AddItem(ctx, userID, bookA, 1)
	if err != nil {
		t.Fatalf("add A failed: %v", err)
	}
	lineB, err := repo.AddItem(ctx, userID, bookB, 5)
	if err != nil {
		t.Fatalf("add B failed: %v", err)
	}

	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	_, err = service.CheckoutCart(ctx, userID, []string{lineA.ID, lineB.ID}, recipient)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	// The available line must not have been touched either.
	if stock := bookStock(t, db, bookA); stock == nil || *stock != 10 {
		t.Fatalf("book A stock changed: %v", stock)
	}
	if stock := bookStock(t, db, bookB); stock == nil || *stock != 2 {
		t.Fatalf("book B stock changed: %v", stock)
	}

	items, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected both lines to stay pending, got %d", len(items))
	}

	var orderCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}
}

func TestCartCheckoutSettlesLines(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "heidi")
	bookA := seedBook(t, db, "Book A", 12.0, intPtr(8))
	bookB := seedBook(t, db, "Book B", 7.5, nil)

	repo := cart.NewRepository(db)
	lineA, err := repo.AddItem(ctx, userID, bookA, 2)
	if err != nil {
		t.Fatalf("add A failed: %v", err)
	}
	lineB, err := repo.AddItem(ctx, userID, bookB, 1)
	if err != nil {
		t.Fatalf("add B failed: %v", err)
	}

	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	lines, err := service.CheckoutCart(ctx, userID, []string{lineA.ID, lineB.ID}, recipient)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected one order per line, got %d", len(lines))
	}

	// Settled lines are deleted, not merely flipped out of pending.
	var remaining int
	if err := db.QueryRow(`SELECT COUNT(*) FROM carts WHERE user_id = $1`, userID).Scan(&remaining); err != nil {
		t.Fatalf("failed to count cart rows: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected settled lines to be deleted, %d rows remain", remaining)
	}

	// The same book can go back into a fresh cart afterwards.
	if _, err := repo.AddItem(ctx, userID, bookA, 1); err != nil {
		t.Fatalf("re-add after settlement failed: %v", err)
	}

	mine, err := orders.NewRepository(db).ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(mine))
	}

	if notifier.count() != 1 {
		t.Fatalf("expected a single confirmation email for the whole cart, got %d", notifier.count())
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "ivan")

	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	_, err = service.CheckoutCart(ctx, userID, []string{uuid.New().String()}, recipient)
	if !errors.Is(err, domain.ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
}

func TestConcurrentCartPaySingleFulfillment(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "mallory")
	bookID := seedBook(t, db, "Double Spend Stories", 10.0, intPtr(100))

	repo := cart.NewRepository(db)
	line, err := repo.AddItem(ctx, userID, bookID, 2)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	// Two simultaneous payments of the same cart line: the row lock makes
	// the loser re-read after commit and find nothing pending.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CheckoutCart(ctx, userID, []string{line.ID}, recipient)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if errors.Is(err, domain.ErrCartEmpty) {
			rejected++
			continue
		}
		t.Fatalf("unexpected error: %v", err)
	}

	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected exactly one fulfillment, got %d succeeded / %d rejected", succeeded, rejected)
	}

	var orderCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&orderCount); err != nil {
		t.Fatalf("failed to count orders: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected a single order, got %d", orderCount)
	}

	if stock := bookStock(t, db, bookID); stock == nil || *stock != 98 {
		t.Fatalf("expected stock decremented exactly once to 98, got %v", stock)
	}

	points, _, err := loyalty.NewEngine(db).Summary(ctx, userID)
	if err != nil {
		t.Fatalf("failed to read loyalty summary: %v", err)
	}
	if points != 2 {
		t.Fatalf("expected 2 points accrued once, got %d", points)
	}
}

func TestSalesReports(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "nina")
	bookA := seedBook(t, db, "Report Book A", 10.0, intPtr(50))
	bookB := seedBook(t, db, "Report Book B", 20.0, intPtr(50))

	// Inside [2026-03-01, 2026-03-03], including both edges.
	seedOrderAt(t, db, userID, bookA, 3, 10.0, "2026-03-01 00:00:00+00")
	seedOrderAt(t, db, userID, bookB, 5, 20.0, "2026-03-03 08:00:00+00")
	seedOrderAt(t, db, userID, bookA, 1, 10.0, "2026-03-03 23:59:59+00")
	// Outside the closed interval.
	seedOrderAt(t, db, userID, bookB, 9, 20.0, "2026-03-04 00:00:01+00")

	repo := orders.NewRepository(db)
	start, _ := time.Parse("2006-01-02", "2026-03-01")
	end, _ := time.Parse("2006-01-02", "2026-03-03")

	sellers, err := repo.BestSellers(ctx, start, end)
	if err != nil {
		t.Fatalf("best sellers failed: %v", err)
	}
	if len(sellers) != 2 {
		t.Fatalf("expected 2 ranked books, got %d", len(sellers))
	}
	if sellers[0].Book.ID != bookB || sellers[0].TotalQuantity != 5 {
		t.Fatalf("expected book B first with 5 sold, got %s with %d", sellers[0].Book.Name, sellers[0].TotalQuantity)
	}
	if sellers[1].Book.ID != bookA || sellers[1].TotalQuantity != 4 {
		t.Fatalf("expected book A second with 4 sold, got %s with %d", sellers[1].Book.Name, sellers[1].TotalQuantity)
	}

	counts, err := repo.VolumeOverTime(ctx, start, end)
	if err != nil {
		t.Fatalf("volume failed: %v", err)
	}
	want := []domain.DailyOrderCount{
		{Date: "2026-03-01", Count: 1},
		{Date: "2026-03-02", Count: 0},
		{Date: "2026-03-03", Count: 2},
	}
	if len(counts) != len(want) {
		t.Fatalf("expected %d days, got %d: %+v", len(want), len(counts), counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("day %d: expected %+v, got %+v", i, want[i], counts[i])
		}
	}
}

func TestStatusUpdateSendsEmail(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	adminID := seedUserWithRole(t, db, "root", "admin")
	ownerID := seedUser(t, db, "olivia")
	bookID := seedBook(t, db, "Status Update Book", 10.0, intPtr(5))
	orderID := seedOrderAt(t, db, ownerID, bookID, 1, 10.0, "2026-03-01 10:00:00+00")

	notifier := &recordingNotifier{}
	handler := orders.NewHandler(orders.NewRepository(db), users.NewRepository(db), notifier, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/orders/{id}/status", handler.HandleUpdateStatus)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+orderID+"/status",
		strings.NewReader(`{"status":"processing"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithUserID(req.Context(), adminID))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status update failed: %d %s", rec.Code, rec.Body.String())
	}

	var status string
	if err := db.QueryRow(`SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status); err != nil {
		t.Fatalf("failed to read status: %v", err)
	}
	if status != "processing" {
		t.Fatalf("expected processing, got %s", status)
	}

	if notifier.count() != 1 {
		t.Fatalf("expected 1 status email, got %d", notifier.count())
	}
	if got := notifier.last(); got != "olivia@example.com: Your order is being processed" {
		t.Fatalf("unexpected email: %q", got)
	}

	// Unknown order ids are a hard 404 and no email goes out.
	req = httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+uuid.New().String()+"/status",
		strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithUserID(req.Context(), adminID))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", rec.Code)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected no extra email, got %d", notifier.count())
	}
}

func TestRegisterLoginAndPayHTTPFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	bookID := seedBook(t, db, "HTTP Flow Book", 10.0, intPtr(20))

	logger := testLogger()
	tokens, err := auth.NewTokenManager("integration-secret")
	if err != nil {
		t.Fatalf("failed to create token manager: %v", err)
	}

	userRepo := users.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	notifier := &recordingNotifier{}
	service := newCheckoutService(t, db, notifier, nil)

	authHandler := auth.NewHandler(userRepo, tokens, logger)
	cartHandler := cart.NewHandler(cartRepo, logger)
	checkoutHandler := checkout.NewHandler(service, logger)
	loyaltyHandler := loyalty.NewHandler(loyalty.NewEngine(db), logger)

	authed := tokens.Middleware(logger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.HandleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.HandleLogin)
	mux.HandleFunc("GET /api/v1/cart", authed(cartHandler.HandleList))
	mux.HandleFunc("POST /api/v1/cart", authed(cartHandler.HandleAdd))
	mux.HandleFunc("POST /api/v1/cart/pay", authed(checkoutHandler.HandlePayCart))
	mux.HandleFunc("GET /api/v1/loyalty/me", authed(loyaltyHandler.HandleMe))

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"judy@example.com","username":"judy","password":"hunter22"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodPost, "/api/v1/auth/login", "", `{"username":"judy","password":"hunter22"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&loginResp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if loginResp.Token == "" {
		t.Fatal("expected a token")
	}

	// Unauthenticated cart access is rejected.
	if rec := do(http.MethodGet, "/api/v1/cart", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous cart, got %d", rec.Code)
	}

	rec = do(http.MethodPost, "/api/v1/cart", loginResp.Token,
		fmt.Sprintf(`{"book_id":%q,"quantity":2}`, bookID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add to cart failed: %d %s", rec.Code, rec.Body.String())
	}
	var addResp struct {
		Item domain.CartItem `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&addResp); err != nil {
		t.Fatalf("failed to decode add response: %v", err)
	}

	// Missing recipient fields fail validation before anything is written.
	rec = do(http.MethodPost, "/api/v1/cart/pay", loginResp.Token,
		fmt.Sprintf(`{"cart_ids":[%q]}`, addResp.Item.ID))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing recipient, got %d %s", rec.Code, rec.Body.String())
	}

	payBody, _ := json.Marshal(map[string]any{
		"cart_ids":    []string{addResp.Item.ID},
		"client_name": "Judy",
		"phone":       "0987654321",
		"address":     "2 Main Street",
	})
	rec = do(http.MethodPost, "/api/v1/cart/pay", loginResp.Token, string(bytes.TrimSpace(payBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("pay failed: %d %s", rec.Code, rec.Body.String())
	}
	var payResp struct {
		Status     string                `json:"status"`
		OrderItems []domain.CheckoutLine `json:"orderItems"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payResp); err != nil {
		t.Fatalf("failed to decode pay response: %v", err)
	}
	if payResp.Status != "success" || len(payResp.OrderItems) != 1 {
		t.Fatalf("unexpected pay response: %+v", payResp)
	}

	if stock := bookStock(t, db, bookID); stock == nil || *stock != 18 {
		t.Fatalf("expected stock 18, got %v", stock)
	}

	rec = do(http.MethodGet, "/api/v1/loyalty/me", loginResp.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("loyalty read failed: %d %s", rec.Code, rec.Body.String())
	}
	var loyaltyResp struct {
		Points int `json:"points"`
		Level  int `json:"level"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&loyaltyResp); err != nil {
		t.Fatalf("failed to decode loyalty response: %v", err)
	}
	if loyaltyResp.Points != 2 || loyaltyResp.Level != domain.LevelNormal {
		t.Fatalf("unexpected loyalty: %+v", loyaltyResp)
	}
}

func TestCheckoutEventFlowsToWorker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	userID := seedUser(t, db, "kevin")
	bookID := seedBook(t, db, "Kafka: The Definitive Guide", 40.0, intPtr(5))

	producer := messaging.NewProducer(brokers, messaging.TopicCheckoutCompleted)
	defer func() { _ = producer.Close() }()

	inlineNotifier := &recordingNotifier{}
	service := newCheckoutService(t, db, inlineNotifier, producer)

	workerNotifier := &recordingNotifier{}
	notification := worker.NewNotification(workerNotifier, testLogger())

	consumer := messaging.NewConsumer(brokers, messaging.TopicCheckoutCompleted, "notification-worker-test")
	defer func() { _ = consumer.Close() }()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Consume(consumerCtx, notification.Handle)
	}()

	if _, err := service.CheckoutDirect(ctx, userID, bookID, 1, recipient); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	deadline := time.After(60 * time.Second)
	for workerNotifier.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never delivered the confirmation email")
		case err := <-consumerDone:
			t.Fatalf("consumer stopped early: %v", err)
		case <-time.After(250 * time.Millisecond):
		}
	}

	// The event went through Kafka, so no inline email was sent.
	if inlineNotifier.count() != 0 {
		t.Fatalf("expected no inline email, got %d", inlineNotifier.count())
	}
}
