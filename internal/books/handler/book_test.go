package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"libris/internal/domain"
	apperrors "libris/pkg/errors"
	httputil "libris/pkg/http"
	"libris/pkg/logger"
	"libris/pkg/model"
)

type mockBookService struct {
	createFunc      func(ctx context.Context, req *model.BookCreate) (*domain.Book, error)
	getByIDFunc     func(ctx context.Context, id string) (*domain.Book, error)
	getByISBNFunc   func(ctx context.Context, isbn string) (*domain.Book, error)
	getAllFunc      func(ctx context.Context, limit int, offset int64, availableOnly bool) ([]*domain.Book, int64, error)
	placeOnHoldFunc func(ctx context.Context, bookID string, req *model.HoldRequest) (*domain.Book, error)
	checkOutFunc    func(ctx context.Context, bookID string, req *model.CheckoutRequest) (*domain.Book, error)
	returnFunc      func(ctx context.Context, bookID string) (*domain.Book, error)
}

func (m *mockBookService) Create(ctx context.Context, req *model.BookCreate) (*domain.Book, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockBookService) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockBookService) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	if m.getByISBNFunc != nil {
		return m.getByISBNFunc(ctx, isbn)
	}
	return nil, nil
}

func (m *mockBookService) GetAll(ctx context.Context, limit int, offset int64, availableOnly bool) ([]*domain.Book, int64, error) {
	if m.getAllFunc != nil {
		return m.getAllFunc(ctx, limit, offset, availableOnly)
	}
	return []*domain.Book{}, 0, nil
}

func (m *mockBookService) Update(ctx context.Context, id string, updates *model.BookUpdate) (*domain.Book, error) {
	return nil, nil
}

func (m *mockBookService) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockBookService) PlaceOnHold(ctx context.Context, bookID string, req *model.HoldRequest) (*domain.Book, error) {
	if m.placeOnHoldFunc != nil {
		return m.placeOnHoldFunc(ctx, bookID, req)
	}
	return nil, nil
}

func (m *mockBookService) CheckOut(ctx context.Context, bookID string, req *model.CheckoutRequest) (*domain.Book, error) {
	if m.checkOutFunc != nil {
		return m.checkOutFunc(ctx, bookID, req)
	}
	return nil, nil
}

func (m *mockBookService) Return(ctx context.Context, bookID string) (*domain.Book, error) {
	if m.returnFunc != nil {
		return m.returnFunc(ctx, bookID)
	}
	return nil, nil
}

func newTestHandler(svc *mockBookService) *BookHandler {
	return NewBookHandler(svc, logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	}))
}

func TestCreate_ReturnsCreatedBook(t *testing.T) {
	book := domain.NewBook("The Go Programming Language", "Donovan", "9780134190440", false, testTime())
	svc := &mockBookService{
		createFunc: func(ctx context.Context, req *model.BookCreate) (*domain.Book, error) {
			return book, nil
		},
	}
	h := newTestHandler(svc)

	body := `{"title":"The Go Programming Language","author":"Donovan","isbn":"9780134190440"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req, httprouter.Params{})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}

	var resp httputil.SuccessResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected response data: %v", resp.Data)
	}
	if data["id"] != book.ID {
		t.Errorf("expected id %s, got %v", book.ID, data["id"])
	}
	if data["status"] != string(domain.StatusAvailable) {
		t.Errorf("expected status %s, got %v", domain.StatusAvailable, data["status"])
	}
}

func TestCreate_InvalidBody(t *testing.T) {
	h := newTestHandler(&mockBookService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Create(w, req, httprouter.Params{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc := &mockBookService{
		getByIDFunc: func(ctx context.Context, id string) (*domain.Book, error) {
			return nil, apperrors.NotFoundWithID("Book", id)
		},
	}
	h := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books/id/missing", nil)
	w := httptest.NewRecorder()

	h.GetByID(w, req, httprouter.Params{{Key: "id", Value: "missing"}})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetAll_InvalidPaginationRejected(t *testing.T) {
	h := newTestHandler(&mockBookService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books?limit=abc", nil)
	w := httptest.NewRecorder()

	h.GetAll(w, req, httprouter.Params{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetAll_AvailableFilterPassedThrough(t *testing.T) {
	var gotAvailableOnly bool
	svc := &mockBookService{
		getAllFunc: func(ctx context.Context, limit int, offset int64, availableOnly bool) ([]*domain.Book, int64, error) {
			gotAvailableOnly = availableOnly
			return []*domain.Book{}, 0, nil
		},
	}
	h := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books?available=true", nil)
	w := httptest.NewRecorder()

	h.GetAll(w, req, httprouter.Params{})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !gotAvailableOnly {
		t.Error("expected availableOnly to be true")
	}
}

func TestPlaceOnHold_PolicyDeniedStatus(t *testing.T) {
	svc := &mockBookService{
		placeOnHoldFunc: func(ctx context.Context, bookID string, req *model.HoldRequest) (*domain.Book, error) {
			return nil, apperrors.PolicyDenied(domain.ReasonOutstandingFees)
		},
	}
	h := newTestHandler(svc)

	body := `{"patron_id":"b2f6c6f0-5df5-4a29-9c3f-8b8b8b8b8b8b"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/id/x/hold", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.PlaceOnHold(w, req, httprouter.Params{{Key: "id", Value: "x"}})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}

	var resp httputil.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != domain.ReasonOutstandingFees {
		t.Errorf("expected error %q, got %q", domain.ReasonOutstandingFees, resp.Error)
	}
}

func TestReturn_ConflictStatus(t *testing.T) {
	svc := &mockBookService{
		returnFunc: func(ctx context.Context, bookID string) (*domain.Book, error) {
			return nil, apperrors.Conflict("book is not checked out")
		},
	}
	h := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/books/id/x/return", nil)
	w := httptest.NewRecorder()

	h.Return(w, req, httprouter.Params{{Key: "id", Value: "x"}})

	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}
}

func testTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}
