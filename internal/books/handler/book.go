package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"libris/internal/books/service"
	httputil "libris/pkg/http"
	"libris/pkg/logger"
	"libris/pkg/model"
)

type BookHandler struct {
	service service.BookService
	log     *logger.Logger
}

func NewBookHandler(service service.BookService, log *logger.Logger) *BookHandler {
	return &BookHandler{
		service: service,
		log:     log,
	}
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	book, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, book); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	book, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookHandler) GetByISBN(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	isbn := ps.ByName("isbn")

	book, err := h.service.GetByISBN(r.Context(), isbn)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByISBN", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByISBN", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	availableOnly := r.URL.Query().Get("available") == "true"

	books, total, err := h.service.GetAll(r.Context(), limit, offset, availableOnly)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, books, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var updates model.BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	book, err := h.service.Update(r.Context(), id, &updates)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookHandler) PlaceOnHold(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req model.HoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "PlaceOnHold", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	book, err := h.service.PlaceOnHold(r.Context(), id, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "PlaceOnHold", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "PlaceOnHold", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookHandler) CheckOut(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req model.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "CheckOut", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	book, err := h.service.CheckOut(r.Context(), id, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CheckOut", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckOut", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookHandler) Return(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	book, err := h.service.Return(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Return", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "Return", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/books", h.Create)
	router.GET("/api/v1/books", h.GetAll)
	router.GET("/api/v1/books/id/:id", h.GetByID)
	router.GET("/api/v1/books/isbn/:isbn", h.GetByISBN)
	router.PATCH("/api/v1/books/id/:id", h.Update)
	router.DELETE("/api/v1/books/id/:id", h.Delete)
	router.POST("/api/v1/books/id/:id/hold", h.PlaceOnHold)
	router.POST("/api/v1/books/id/:id/checkout", h.CheckOut)
	router.POST("/api/v1/books/id/:id/return", h.Return)
}
