package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/model"
	"github.com/vyrodovalexey/groceries-api/internal/store"
)

// Route paths.
const (
	GroceriesPath = "/v1/groceries"
	HealthPath    = "/health"
	ReadyPath     = "/ready"
)

// valueChecker is implemented by request bodies carrying an item value.
type valueChecker interface {
	CheckValue() error
}

// maxBodyBytes caps the size of item request bodies.
const maxBodyBytes = 1 << 20

// GroceriesHandler handles REST API requests for grocery items.
type GroceriesHandler struct {
	store    store.Store
	notifier Notifier
	validate *validator.Validate
	logger   *zap.Logger
}

// NewGroceriesHandler creates a new GroceriesHandler instance.
// A nil notifier disables change events.
func NewGroceriesHandler(s store.Store, notifier Notifier, logger *zap.Logger) *GroceriesHandler {
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &GroceriesHandler{
		store:    s,
		notifier: notifier,
		validate: newValidator(),
		logger:   logger,
	}
}

// newValidator returns a validator reporting fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// RegisterRoutes registers the groceries and health routes with the router.
func (h *GroceriesHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(HealthPath, h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc(ReadyPath, h.ReadyCheck).Methods(http.MethodGet)
	router.HandleFunc(GroceriesPath, h.ListItems).Methods(http.MethodGet)
	router.HandleFunc(GroceriesPath, h.AddItem).Methods(http.MethodPost)
	router.HandleFunc(GroceriesPath, h.UpdateItem).Methods(http.MethodPut)
	router.HandleFunc(GroceriesPath, h.DeleteItem).Methods(http.MethodDelete)
}

// HealthCheck handles GET /health requests.
func (h *GroceriesHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(response))
}

// ReadyCheck handles GET /ready requests. The service is ready once the
// store answers a List call.
func (h *GroceriesHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.List(r.Context()); err != nil {
		h.logger.Warn("store not ready", zap.Error(err))
		writeJSON(w, h.logger, http.StatusServiceUnavailable,
			model.NewErrorResponse[ReadyResponse]("store unavailable"))
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(ReadyResponse{Status: "ready"}))
}

// ListItems handles GET /v1/groceries requests.
func (h *GroceriesHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "list items")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, items)
}

// AddItem handles POST /v1/groceries requests. Any id in the body is ignored.
func (h *GroceriesHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var input model.ItemRequest
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	item, err := h.store.Add(r.Context(), input.Item())
	if err != nil {
		h.handleStoreError(w, err, "add item")
		return
	}

	h.logger.Debug("item added", zap.Int("id", item.ID), zap.String("name", item.Name))
	h.notifier.Publish(model.NewCreatedEvent(item))
	w.WriteHeader(http.StatusOK)
}

// UpdateItem handles PUT /v1/groceries requests. The body carries the id of
// the item to replace; an unknown id inserts the item.
func (h *GroceriesHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var input model.ReplaceItemRequest
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	item := input.Item()
	if err := h.store.Update(r.Context(), item); err != nil {
		h.handleStoreError(w, err, "update item")
		return
	}

	h.logger.Debug("item updated", zap.Int("id", item.ID))
	h.notifier.Publish(model.NewUpdatedEvent(item))
	w.WriteHeader(http.StatusOK)
}

// DeleteItem handles DELETE /v1/groceries?Id=N requests. Deleting an unknown
// id succeeds.
func (h *GroceriesHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	input := model.DeleteItemQuery{ID: query.Get("Id")}
	if input.ID == "" {
		input.ID = query.Get("id")
	}

	if err := h.validate.Struct(input); err != nil {
		h.writeValidationError(w, err)
		return
	}

	id, err := strconv.Atoi(input.ID)
	if err != nil {
		h.logger.Warn("invalid item id", zap.String("id", input.ID), zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid item ID", err.Error())
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, err, "delete item")
		return
	}

	h.logger.Debug("item deleted", zap.Int("id", id))
	h.notifier.Publish(model.NewDeletedEvent(id))
	w.WriteHeader(http.StatusOK)
}

// decodeAndValidate reads a JSON body into dst and checks its shape. It writes
// the error response and returns false on failure.
func (h *GroceriesHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.writeValidationError(w, err)
		return false
	}

	if checker, ok := dst.(valueChecker); ok {
		if err := checker.CheckValue(); err != nil {
			h.logger.Warn("validation failed", zap.String("field", "value"), zap.Error(err))
			writeError(w, h.logger, http.StatusBadRequest, "validation failed", "value: "+err.Error())
			return false
		}
	}

	return true
}

// writeValidationError reports failed shape checks as a 400 response.
func (h *GroceriesHandler) writeValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.logger.Error("error validating request", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request", "")
		return
	}

	details := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details = append(details, fieldErr.Field()+": failed on rule: "+fieldErr.Tag())
	}

	h.logger.Warn("validation failed", zap.Strings("errors", details))
	writeError(w, h.logger, http.StatusBadRequest, "validation failed", strings.Join(details, "; "))
}

// handleStoreError logs a store failure and writes a 500 response. The store
// has no business-level errors, so anything reaching here is unexpected.
func (h *GroceriesHandler) handleStoreError(w http.ResponseWriter, err error, operation string) {
	h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
	writeError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
}
