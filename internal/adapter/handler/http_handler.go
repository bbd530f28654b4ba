package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/marketplace-cart/internal/core/domain"
	"github.com/rl1809/marketplace-cart/internal/core/service"
)

type HTTPHandler struct {
	cartService *service.CartService
	log         logrus.FieldLogger
}

type AddToCartHTTPRequest struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

type CartHTTPResponse struct {
	Products domain.Cart `json:"products"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(cartService *service.CartService, logger logrus.FieldLogger) *HTTPHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPHandler{cartService: cartService, log: logger}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(h.log))

	r.Get("/health", h.HealthCheck)
	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Get("/summary", h.GetSummary)
		r.Post("/items", h.AddToCart)
		r.Post("/items/{id}/increment", h.Increment)
		r.Post("/items/{id}/decrement", h.Decrement)
	})

	return r
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, nil)
}

func (h *HTTPHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cartService.Summary(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	err := h.cartService.AddToCart(r.Context(), domain.ProductBase{
		ID:       req.ID,
		Title:    req.Title,
		ImageURL: req.ImageURL,
		Price:    req.Price,
	})
	h.respondCart(w, r, err)
}

func (h *HTTPHandler) Increment(w http.ResponseWriter, r *http.Request) {
	err := h.cartService.Increment(r.Context(), chi.URLParam(r, "id"))
	h.respondCart(w, r, err)
}

func (h *HTTPHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	err := h.cartService.Decrement(r.Context(), chi.URLParam(r, "id"))
	h.respondCart(w, r, err)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if !h.cartService.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondCart writes the cart after a mutation, or the mapped error.
func (h *HTTPHandler) respondCart(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	products, err := h.cartService.Products(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CartHTTPResponse{Products: products})
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidProduct):
		status = http.StatusBadRequest
		message = "invalid product"
	case errors.Is(err, service.ErrEntryNotFound):
		status = http.StatusNotFound
		message = "product not in cart"
	case errors.Is(err, service.ErrStoreNotInitialized), errors.Is(err, service.ErrStoreClosed):
		status = http.StatusServiceUnavailable
		message = "cart unavailable"
	default:
		h.log.WithError(err).WithField("request_id", GetRequestID(r.Context())).Error("cart request failed")
	}

	writeJSON(w, status, ErrorHTTPResponse{
		Success: false,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
