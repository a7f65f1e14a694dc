package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	bookserrors "libris/internal/books/errors"
	"libris/internal/books/validator"
	"libris/internal/domain"
	"libris/pkg/config"
	mongotx "libris/pkg/db/mongo"
	apperrors "libris/pkg/errors"
	"libris/pkg/logger"
	"libris/pkg/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type mockBookRepository struct {
	createFunc         func(ctx context.Context, book *domain.Book) error
	findByIDFunc       func(ctx context.Context, id string) (*domain.Book, error)
	findByISBNFunc     func(ctx context.Context, isbn string) (*domain.Book, error)
	updateFunc         func(ctx context.Context, book *domain.Book) error
	deleteFunc         func(ctx context.Context, id string) error
	countFunc          func(ctx context.Context) (int64, error)
	countByStatusFunc  func(ctx context.Context, status domain.BookStatus) (int64, error)
	findAllFunc        func(ctx context.Context, limit int, offset int64) ([]*domain.Book, error)
	findByStatusFunc   func(ctx context.Context, status domain.BookStatus, limit int, offset int64) ([]*domain.Book, error)
	findHeldFunc       func(ctx context.Context, patronID string) ([]*domain.Book, error)
	countForPatronFunc func(ctx context.Context, patronID string) (int64, error)
}

func (m *mockBookRepository) Create(ctx context.Context, book *domain.Book) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, book)
	}
	return nil
}

func (m *mockBookRepository) FindByID(ctx context.Context, id string) (*domain.Book, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockBookRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	if m.findByISBNFunc != nil {
		return m.findByISBNFunc(ctx, isbn)
	}
	return nil, nil
}

func (m *mockBookRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*domain.Book, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*domain.Book{}, nil
}

func (m *mockBookRepository) FindByStatus(ctx context.Context, status domain.BookStatus, limit int, offset int64) ([]*domain.Book, error) {
	if m.findByStatusFunc != nil {
		return m.findByStatusFunc(ctx, status, limit, offset)
	}
	return []*domain.Book{}, nil
}

func (m *mockBookRepository) FindHeldByPatron(ctx context.Context, patronID string) ([]*domain.Book, error) {
	if m.findHeldFunc != nil {
		return m.findHeldFunc(ctx, patronID)
	}
	return []*domain.Book{}, nil
}

func (m *mockBookRepository) Update(ctx context.Context, book *domain.Book) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, book)
	}
	return nil
}

func (m *mockBookRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockBookRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockBookRepository) CountByStatus(ctx context.Context, status domain.BookStatus) (int64, error) {
	if m.countByStatusFunc != nil {
		return m.countByStatusFunc(ctx, status)
	}
	return 0, nil
}

func (m *mockBookRepository) CountActiveForPatron(ctx context.Context, patronID string) (int64, error) {
	if m.countForPatronFunc != nil {
		return m.countForPatronFunc(ctx, patronID)
	}
	return 0, nil
}

func (m *mockBookRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (m *mockBookRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

type mockPatronRepository struct {
	findByIDFunc func(ctx context.Context, id string) (*domain.Patron, error)
	updateFunc   func(ctx context.Context, patron *domain.Patron) error
}

func (m *mockPatronRepository) Create(ctx context.Context, patron *domain.Patron) error {
	return nil
}

func (m *mockPatronRepository) FindByID(ctx context.Context, id string) (*domain.Patron, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPatronRepository) FindByEmail(ctx context.Context, email string) (*domain.Patron, error) {
	return nil, nil
}

func (m *mockPatronRepository) FindAll(ctx context.Context, activeOnly bool, limit int, offset int64) ([]*domain.Patron, error) {
	return []*domain.Patron{}, nil
}

func (m *mockPatronRepository) Update(ctx context.Context, patron *domain.Patron) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, patron)
	}
	return nil
}

func (m *mockPatronRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	return 0, nil
}

func (m *mockPatronRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (m *mockPatronRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

type mockPublisher struct {
	published []domain.Event
}

func (m *mockPublisher) Publish(ctx context.Context, events ...domain.Event) {
	m.published = append(m.published, events...)
}

func newTestConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:     "error",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func newTestService(books *mockBookRepository, patrons *mockPatronRepository, pub *mockPublisher) *bookService {
	cfg := newTestConfig()
	svc := NewBookService(books, patrons, validator.NewBookValidator(cfg.Log), pub, cfg).(*bookService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func availableBook() *domain.Book {
	return domain.NewBook("The Go Programming Language", "Donovan", "9780134190440", false, testNow.AddDate(0, -1, 0))
}

func activePatron() *domain.Patron {
	return domain.NewPatron("Ada Lovelace", "ada@example.com", domain.PatronRegular, testNow.AddDate(0, -1, 0))
}

func TestPlaceOnHold_Success(t *testing.T) {
	book := availableBook()
	patron := activePatron()

	var updated *domain.Book
	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
		updateFunc: func(ctx context.Context, b *domain.Book) error {
			updated = b
			return nil
		},
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return patron, nil },
	}
	pub := &mockPublisher{}
	svc := newTestService(books, patrons, pub)

	result, err := svc.PlaceOnHold(context.Background(), book.ID, &model.HoldRequest{PatronID: patron.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.StatusOnHold {
		t.Errorf("expected status %q, got %q", domain.StatusOnHold, result.Status)
	}
	if result.HolderID == nil || *result.HolderID != patron.ID {
		t.Errorf("expected holder %s, got %v", patron.ID, result.HolderID)
	}
	wantExpiry := testNow.AddDate(0, 0, 7)
	if result.HoldExpiresAt == nil || !result.HoldExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, result.HoldExpiresAt)
	}
	if updated == nil {
		t.Error("expected book to be persisted")
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.published))
	}
	if pub.published[0].EventType() != domain.EventTypeBookPlacedOnHold {
		t.Errorf("unexpected event type %q", pub.published[0].EventType())
	}
}

func TestPlaceOnHold_ExtendedDuration(t *testing.T) {
	book := availableBook()
	patron := activePatron()

	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return patron, nil },
	}
	svc := newTestService(books, patrons, &mockPublisher{})

	result, err := svc.PlaceOnHold(context.Background(), book.ID, &model.HoldRequest{PatronID: patron.ID, Days: 14})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantExpiry := testNow.AddDate(0, 0, 14)
	if result.HoldExpiresAt == nil || !result.HoldExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, result.HoldExpiresAt)
	}
}

func TestPlaceOnHold_PolicyDenied(t *testing.T) {
	tests := []struct {
		name       string
		book       func() *domain.Book
		patron     func() *domain.Patron
		wantReason string
	}{
		{
			name: "inactive patron",
			book: availableBook,
			patron: func() *domain.Patron {
				p := activePatron()
				p.Deactivate(testNow)
				return p
			},
			wantReason: domain.ReasonPatronInactive,
		},
		{
			name: "outstanding fees",
			book: availableBook,
			patron: func() *domain.Patron {
				p := activePatron()
				_ = p.AddFee(domain.NewMoney(250, "USD"), testNow)
				return p
			},
			wantReason: domain.ReasonOutstandingFees,
		},
		{
			name: "restricted book regular patron",
			book: func() *domain.Book {
				b := availableBook()
				b.RestrictedAccess = true
				return b
			},
			patron:     activePatron,
			wantReason: domain.ReasonRestrictedAccess,
		},
		{
			name: "inactive outranks fees",
			book: availableBook,
			patron: func() *domain.Patron {
				p := activePatron()
				_ = p.AddFee(domain.NewMoney(250, "USD"), testNow)
				p.Deactivate(testNow)
				return p
			},
			wantReason: domain.ReasonPatronInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := tt.book()
			patron := tt.patron()

			books := &mockBookRepository{
				findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
			}
			patrons := &mockPatronRepository{
				findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return patron, nil },
			}
			pub := &mockPublisher{}
			svc := newTestService(books, patrons, pub)

			_, err := svc.PlaceOnHold(context.Background(), book.ID, &model.HoldRequest{PatronID: patron.ID})
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodePolicyDenied {
				t.Errorf("expected code %s, got %s", apperrors.CodePolicyDenied, appErr.Code)
			}
			if appErr.Message != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, appErr.Message)
			}
			if len(pub.published) != 0 {
				t.Errorf("expected no published events, got %d", len(pub.published))
			}
		})
	}
}

func TestPlaceOnHold_BookNotAvailable(t *testing.T) {
	book := availableBook()
	holder := activePatron()
	if _, err := book.PlaceOnHold(holder.ID, domain.StandardHold, testNow); err != nil {
		t.Fatalf("setup: %v", err)
	}

	other := domain.NewPatron("Grace Hopper", "grace@example.com", domain.PatronRegular, testNow)

	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return other, nil },
	}
	svc := newTestService(books, patrons, &mockPublisher{})

	_, err := svc.PlaceOnHold(context.Background(), book.ID, &model.HoldRequest{PatronID: other.ID})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected code %s, got %s", apperrors.CodeConflict, appErr.Code)
	}
}

func TestCheckOut_Success(t *testing.T) {
	book := availableBook()
	patron := activePatron()

	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return patron, nil },
	}
	pub := &mockPublisher{}
	svc := newTestService(books, patrons, pub)

	result, err := svc.CheckOut(context.Background(), book.ID, &model.CheckoutRequest{PatronID: patron.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.StatusCheckedOut {
		t.Errorf("expected status %q, got %q", domain.StatusCheckedOut, result.Status)
	}
	wantDue := testNow.AddDate(0, 0, domain.CheckoutPeriodDays)
	if result.DueAt == nil || !result.DueAt.Equal(wantDue) {
		t.Errorf("expected due date %v, got %v", wantDue, result.DueAt)
	}
	if len(pub.published) != 1 || pub.published[0].EventType() != domain.EventTypeBookCheckedOut {
		t.Errorf("expected one checked-out event, got %v", pub.published)
	}
}

func TestCheckOut_HolderConvertsHold(t *testing.T) {
	book := availableBook()
	patron := activePatron()
	if _, err := book.PlaceOnHold(patron.ID, domain.StandardHold, testNow.Add(-time.Hour)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return patron, nil },
	}
	svc := newTestService(books, patrons, &mockPublisher{})

	result, err := svc.CheckOut(context.Background(), book.ID, &model.CheckoutRequest{PatronID: patron.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.StatusCheckedOut {
		t.Errorf("expected status %q, got %q", domain.StatusCheckedOut, result.Status)
	}
	if result.HolderID != nil || result.HoldExpiresAt != nil {
		t.Error("expected hold fields to be cleared after checkout")
	}
}

func TestCheckOut_HeldByAnother(t *testing.T) {
	book := availableBook()
	holder := activePatron()
	if _, err := book.PlaceOnHold(holder.ID, domain.StandardHold, testNow.Add(-time.Hour)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	other := domain.NewPatron("Grace Hopper", "grace@example.com", domain.PatronRegular, testNow)

	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return other, nil },
	}
	svc := newTestService(books, patrons, &mockPublisher{})

	_, err := svc.CheckOut(context.Background(), book.ID, &model.CheckoutRequest{PatronID: other.ID})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected code %s, got %s", apperrors.CodeConflict, appErr.Code)
	}
}

func TestCheckOut_OutstandingFeesBlocked(t *testing.T) {
	book := availableBook()
	patron := activePatron()
	_ = patron.AddFee(domain.NewMoney(100, "USD"), testNow)

	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return patron, nil },
	}
	svc := newTestService(books, patrons, &mockPublisher{})

	_, err := svc.CheckOut(context.Background(), book.ID, &model.CheckoutRequest{PatronID: patron.ID})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodePolicyDenied {
		t.Errorf("expected code %s, got %s", apperrors.CodePolicyDenied, appErr.Code)
	}
	if appErr.Message != domain.ReasonOutstandingFees {
		t.Errorf("expected reason %q, got %q", domain.ReasonOutstandingFees, appErr.Message)
	}
}

func TestReturn_OnTime(t *testing.T) {
	book := availableBook()
	patron := activePatron()
	if _, err := book.CheckOut(patron.ID, testNow.AddDate(0, 0, -7)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	var feeUpdates int
	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return patron, nil },
		updateFunc: func(ctx context.Context, p *domain.Patron) error {
			feeUpdates++
			return nil
		},
	}
	pub := &mockPublisher{}
	svc := newTestService(books, patrons, pub)

	result, err := svc.Return(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.StatusAvailable {
		t.Errorf("expected status %q, got %q", domain.StatusAvailable, result.Status)
	}
	if result.BorrowerID != nil || result.DueAt != nil {
		t.Error("expected borrower fields to be cleared")
	}
	if feeUpdates != 0 {
		t.Errorf("expected no fee accrual for on-time return, got %d patron updates", feeUpdates)
	}
	if len(pub.published) != 1 || pub.published[0].EventType() != domain.EventTypeBookReturned {
		t.Errorf("expected one returned event, got %v", pub.published)
	}
}

func TestReturn_OverdueAccruesFee(t *testing.T) {
	book := availableBook()
	patron := activePatron()
	// Checked out long enough ago that the book is 3 full days overdue.
	checkoutAt := testNow.AddDate(0, 0, -(domain.CheckoutPeriodDays + 3)).Add(-12 * time.Hour)
	if _, err := book.CheckOut(patron.ID, checkoutAt); err != nil {
		t.Fatalf("setup: %v", err)
	}

	var updatedPatron *domain.Patron
	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	patrons := &mockPatronRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Patron, error) { return patron, nil },
		updateFunc: func(ctx context.Context, p *domain.Patron) error {
			updatedPatron = p
			return nil
		},
	}
	svc := newTestService(books, patrons, &mockPublisher{})

	if _, err := svc.Return(context.Background(), book.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updatedPatron == nil {
		t.Fatal("expected patron fee balance to be persisted")
	}
	wantCents := int64(3) * domain.OverdueFeeCentsPerDay
	if updatedPatron.OutstandingFees.Cents != wantCents {
		t.Errorf("expected fee balance %d cents, got %d", wantCents, updatedPatron.OutstandingFees.Cents)
	}
}

func TestReturn_NotCheckedOut(t *testing.T) {
	book := availableBook()

	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	svc := newTestService(books, &mockPatronRepository{}, &mockPublisher{})

	_, err := svc.Return(context.Background(), book.ID)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected code %s, got %s", apperrors.CodeConflict, appErr.Code)
	}
}

func TestCreate_DuplicateISBN(t *testing.T) {
	existing := availableBook()

	books := &mockBookRepository{
		findByISBNFunc: func(ctx context.Context, isbn string) (*domain.Book, error) { return existing, nil },
	}
	svc := newTestService(books, &mockPatronRepository{}, &mockPublisher{})

	_, err := svc.Create(context.Background(), &model.BookCreate{
		Title:  "Another Copy",
		Author: "Donovan",
		ISBN:   existing.ISBN,
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeAlreadyExists {
		t.Errorf("expected code %s, got %s", apperrors.CodeAlreadyExists, appErr.Code)
	}
	if appErr.StatusCode() != 409 {
		t.Errorf("expected status 409, got %d", appErr.StatusCode())
	}
}

func TestCreate_InvalidISBN(t *testing.T) {
	svc := newTestService(&mockBookRepository{}, &mockPatronRepository{}, &mockPublisher{})

	_, err := svc.Create(context.Background(), &model.BookCreate{
		Title:  "Bad ISBN",
		Author: "Nobody",
		ISBN:   "12345",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected code %s, got %s", apperrors.CodeValidation, appErr.Code)
	}
}

func TestDelete_OnlyAvailableBooks(t *testing.T) {
	book := availableBook()
	patron := activePatron()
	if _, err := book.CheckOut(patron.ID, testNow); err != nil {
		t.Fatalf("setup: %v", err)
	}

	books := &mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) { return book, nil },
	}
	svc := newTestService(books, &mockPatronRepository{}, &mockPublisher{})

	err := svc.Delete(context.Background(), book.ID)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected code %s, got %s", apperrors.CodeConflict, appErr.Code)
	}
}

func TestGetByID_InvalidUUID(t *testing.T) {
	svc := newTestService(&mockBookRepository{
		findByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) {
			if _, err := uuid.Parse(id); err != nil {
				return nil, fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
			}
			return availableBook(), nil
		},
	}, &mockPatronRepository{}, &mockPublisher{})

	_, err := svc.GetByID(context.Background(), "not-a-uuid")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected code %s, got %s", apperrors.CodeInvalidInput, appErr.Code)
	}
}
