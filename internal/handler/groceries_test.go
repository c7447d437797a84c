package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/model"
	"github.com/vyrodovalexey/groceries-api/internal/store"
)

// mockStore implements store.Store for testing
type mockStore struct {
	items     []model.Item
	nextID    int
	listErr   error
	addErr    error
	updateErr error
	deleteErr error
	updated   *model.Item
	deleted   *int
}

func newMockStore() *mockStore {
	return &mockStore{}
}

func (m *mockStore) List(_ context.Context) ([]model.Item, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	items := make([]model.Item, len(m.items))
	copy(items, m.items)
	return items, nil
}

func (m *mockStore) Add(_ context.Context, item model.Item) (model.Item, error) {
	if m.addErr != nil {
		return model.Item{}, m.addErr
	}
	item.ID = m.nextID
	m.nextID++
	m.items = append(m.items, item)
	return item, nil
}

func (m *mockStore) Update(_ context.Context, item model.Item) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = &item
	return nil
}

func (m *mockStore) Delete(_ context.Context, id int) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = &id
	return nil
}

// recordingNotifier collects published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (n *recordingNotifier) Publish(event model.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []model.ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.ChangeEvent(nil), n.events...)
}

func newTestHandler(s store.Store) (*GroceriesHandler, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewGroceriesHandler(s, notifier, zap.NewNop()), notifier
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestNewGroceriesHandler(t *testing.T) {
	// Act
	handler := NewGroceriesHandler(newMockStore(), nil, zap.NewNop())

	// Assert
	if handler == nil {
		t.Fatal("NewGroceriesHandler() returned nil")
	}
	if handler.store == nil {
		t.Error("store should not be nil")
	}
	if handler.notifier == nil {
		t.Error("nil notifier should be replaced with a no-op")
	}
	if handler.validate == nil {
		t.Error("validate should not be nil")
	}
}

func TestGroceriesHandler_HealthCheck(t *testing.T) {
	// Arrange
	handler, _ := newTestHandler(newMockStore())
	req := httptest.NewRequest(http.MethodGet, HealthPath, nil)
	rr := httptest.NewRecorder()

	// Act
	handler.HealthCheck(rr, req)

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("HealthCheck() status = %d, want %d", rr.Code, http.StatusOK)
	}

	var response model.APIResponse[HealthResponse]
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !response.Success {
		t.Error("HealthCheck() response.Success = false, want true")
	}
	if response.Data.Status != "healthy" {
		t.Errorf("HealthCheck() status = %s, want healthy", response.Data.Status)
	}
	if response.Data.Version != Version {
		t.Errorf("HealthCheck() version = %s, want %s", response.Data.Version, Version)
	}
}

func TestGroceriesHandler_ReadyCheck(t *testing.T) {
	tests := []struct {
		name       string
		listErr    error
		wantStatus int
	}{
		{"store answers", nil, http.StatusOK},
		{"store fails", errors.New("unreachable"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := newMockStore()
			s.listErr = tt.listErr
			handler, _ := newTestHandler(s)
			req := httptest.NewRequest(http.MethodGet, ReadyPath, nil)
			rr := httptest.NewRecorder()

			// Act
			handler.ReadyCheck(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Errorf("ReadyCheck() status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestGroceriesHandler_ListItems(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*mockStore)
		wantStatus int
		wantCount  int
	}{
		{
			name:       "empty list",
			setup:      func(_ *mockStore) {},
			wantStatus: http.StatusOK,
			wantCount:  0,
		},
		{
			name: "multiple items",
			setup: func(m *mockStore) {
				m.items = []model.Item{
					{ID: 0, Name: "Milk", Quantity: 2, Value: decimal.RequireFromString("1.50")},
					{ID: 1, Name: "Eggs", Quantity: 12, Value: decimal.NewFromInt(3)},
				}
			},
			wantStatus: http.StatusOK,
			wantCount:  2,
		},
		{
			name: "store error",
			setup: func(m *mockStore) {
				m.listErr = errors.New("database error")
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := newMockStore()
			tt.setup(s)
			handler, _ := newTestHandler(s)
			req := httptest.NewRequest(http.MethodGet, GroceriesPath, nil)
			rr := httptest.NewRecorder()

			// Act
			handler.ListItems(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("ListItems() status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			body := strings.TrimSpace(rr.Body.String())
			if !strings.HasPrefix(body, "[") {
				t.Fatalf("ListItems() body should be a bare JSON array, got %s", body)
			}

			var items []model.Item
			if err := json.Unmarshal([]byte(body), &items); err != nil {
				t.Fatalf("Failed to decode items: %v", err)
			}
			if len(items) != tt.wantCount {
				t.Errorf("ListItems() returned %d items, want %d", len(items), tt.wantCount)
			}
		})
	}
}

func TestGroceriesHandler_AddItem(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		addErr      error
		wantStatus  int
		wantDetails string
	}{
		{
			name:       "valid item",
			body:       `{"name":"Milk","quantity":2,"value":1.50}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "client id is ignored",
			body:       `{"id":99,"name":"Milk","quantity":2,"value":1.50}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty name and zero values are accepted",
			body:       `{"name":"","quantity":0,"value":0}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "negative quantity is accepted",
			body:       `{"name":"Refund","quantity":-1,"value":-2.5}`,
			wantStatus: http.StatusOK,
		},
		{
			name:        "missing fields",
			body:        `{"name":"Milk"}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "quantity: failed on rule: required; value: failed on rule: required",
		},
		{
			name:        "null value",
			body:        `{"name":"Milk","quantity":1,"value":null}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "value: failed on rule: required",
		},
		{
			name:       "malformed JSON",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "huge exponent is rejected",
			body:        `{"name":"a","quantity":1,"value":1e3000000}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "value: out of range",
		},
		{
			name:        "value above the decimal range",
			body:        `{"name":"a","quantity":1,"value":79228162514264337593543950336}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "value: out of range",
		},
		{
			name:        "more than 28 fractional digits",
			body:        `{"name":"a","quantity":1,"value":0.00000000000000000000000000001}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "value: out of range",
		},
		{
			name:       "largest value is accepted",
			body:       `{"name":"a","quantity":1,"value":79228162514264337593543950335}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "smallest negative value is accepted",
			body:       `{"name":"a","quantity":1,"value":-79228162514264337593543950335}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "28 fractional digits are accepted",
			body:       `{"name":"a","quantity":1,"value":0.0000000000000000000000000001}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong field type",
			body:       `{"name":"Milk","quantity":"two","value":1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store error",
			body:       `{"name":"Milk","quantity":2,"value":1.50}`,
			addErr:     errors.New("database error"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := newMockStore()
			s.addErr = tt.addErr
			handler, notifier := newTestHandler(s)
			req := httptest.NewRequest(http.MethodPost, GroceriesPath, bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			// Act
			handler.AddItem(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("AddItem() status = %d, want %d, body = %s", rr.Code, tt.wantStatus, rr.Body.String())
			}

			if tt.wantStatus != http.StatusOK {
				resp := decodeError(t, rr)
				if resp.Code != tt.wantStatus {
					t.Errorf("error code = %d, want %d", resp.Code, tt.wantStatus)
				}
				if tt.wantDetails != "" && resp.Details != tt.wantDetails {
					t.Errorf("details = %q, want %q", resp.Details, tt.wantDetails)
				}
				if len(notifier.Events()) != 0 {
					t.Error("failed request should not publish events")
				}
				return
			}

			if rr.Body.Len() != 0 {
				t.Errorf("AddItem() body = %q, want empty", rr.Body.String())
			}
			if len(s.items) != 1 || s.items[0].ID != 0 {
				t.Fatalf("store items = %+v, want one item with ID 0", s.items)
			}

			events := notifier.Events()
			if len(events) != 1 || events[0].Type != model.ChangeCreated || events[0].ID != 0 {
				t.Errorf("events = %+v, want one created event for ID 0", events)
			}
		})
	}
}

func TestGroceriesHandler_UpdateItem(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		updateErr   error
		wantStatus  int
		wantItem    model.Item
		wantDetails string
	}{
		{
			name:       "valid item",
			body:       `{"id":0,"name":"Milk","quantity":1,"value":1.50}`,
			wantStatus: http.StatusOK,
			wantItem:   model.Item{ID: 0, Name: "Milk", Quantity: 1, Value: decimal.RequireFromString("1.5")},
		},
		{
			name:       "negative id is passed through",
			body:       `{"id":-5,"name":"Odd","quantity":1,"value":1}`,
			wantStatus: http.StatusOK,
			wantItem:   model.Item{ID: -5, Name: "Odd", Quantity: 1, Value: decimal.NewFromInt(1)},
		},
		{
			name:        "missing id",
			body:        `{"name":"Milk","quantity":1,"value":1.50}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "id: failed on rule: required",
		},
		{
			name:        "missing name",
			body:        `{"id":0,"quantity":1,"value":1.50}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "name: failed on rule: required",
		},
		{
			name:        "missing quantity",
			body:        `{"id":0,"name":"Milk","value":1.50}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "quantity: failed on rule: required",
		},
		{
			name:        "missing value",
			body:        `{"id":0,"name":"Milk","quantity":1}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "value: failed on rule: required",
		},
		{
			name:        "huge exponent is rejected",
			body:        `{"id":0,"name":"Milk","quantity":1,"value":1e300000000}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: "value: out of range",
		},
		{
			name:       "malformed JSON",
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store error",
			body:       `{"id":0,"name":"Milk","quantity":1,"value":1.50}`,
			updateErr:  errors.New("database error"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := newMockStore()
			s.updateErr = tt.updateErr
			handler, notifier := newTestHandler(s)
			req := httptest.NewRequest(http.MethodPut, GroceriesPath, bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			// Act
			handler.UpdateItem(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("UpdateItem() status = %d, want %d, body = %s", rr.Code, tt.wantStatus, rr.Body.String())
			}

			if tt.wantStatus != http.StatusOK {
				resp := decodeError(t, rr)
				if tt.wantDetails != "" && resp.Details != tt.wantDetails {
					t.Errorf("details = %q, want %q", resp.Details, tt.wantDetails)
				}
				return
			}

			if s.updated == nil {
				t.Fatal("Update() was not called")
			}
			if !s.updated.Equal(tt.wantItem) {
				t.Errorf("updated item = %+v, want %+v", *s.updated, tt.wantItem)
			}

			events := notifier.Events()
			if len(events) != 1 || events[0].Type != model.ChangeUpdated || events[0].ID != tt.wantItem.ID {
				t.Errorf("events = %+v, want one updated event", events)
			}
		})
	}
}

func TestGroceriesHandler_DeleteItem(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		deleteErr  error
		wantStatus int
		wantID     int
	}{
		{
			name:       "Id parameter",
			query:      "?Id=3",
			wantStatus: http.StatusOK,
			wantID:     3,
		},
		{
			name:       "lower case id parameter",
			query:      "?id=4",
			wantStatus: http.StatusOK,
			wantID:     4,
		},
		{
			name:       "negative id",
			query:      "?Id=-1",
			wantStatus: http.StatusOK,
			wantID:     -1,
		},
		{
			name:       "missing id",
			query:      "",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non numeric id",
			query:      "?Id=abc",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "fractional id",
			query:      "?Id=1.5",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store error",
			query:      "?Id=1",
			deleteErr:  errors.New("database error"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := newMockStore()
			s.deleteErr = tt.deleteErr
			handler, notifier := newTestHandler(s)
			req := httptest.NewRequest(http.MethodDelete, GroceriesPath+tt.query, nil)
			rr := httptest.NewRecorder()

			// Act
			handler.DeleteItem(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("DeleteItem() status = %d, want %d, body = %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			if s.deleted == nil || *s.deleted != tt.wantID {
				t.Errorf("deleted = %v, want %d", s.deleted, tt.wantID)
			}
			if rr.Body.Len() != 0 {
				t.Errorf("DeleteItem() body = %q, want empty", rr.Body.String())
			}

			events := notifier.Events()
			if len(events) != 1 || events[0].Type != model.ChangeDeleted || events[0].ID != tt.wantID {
				t.Errorf("events = %+v, want one deleted event", events)
			}
		})
	}
}

func TestGroceriesHandler_RegisterRoutes(t *testing.T) {
	// Arrange
	handler, _ := newTestHandler(newMockStore())
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, HealthPath, "", http.StatusOK},
		{http.MethodGet, ReadyPath, "", http.StatusOK},
		{http.MethodGet, GroceriesPath, "", http.StatusOK},
		{http.MethodPost, GroceriesPath, `{"name":"Milk","quantity":2,"value":1.5}`, http.StatusOK},
		{http.MethodPut, GroceriesPath, `{"id":0,"name":"Milk","quantity":1,"value":1.5}`, http.StatusOK},
		{http.MethodDelete, GroceriesPath + "?Id=0", "", http.StatusOK},
		{http.MethodPatch, GroceriesPath, "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			// Act
			router.ServeHTTP(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestGroceriesHandler_Scenario(t *testing.T) {
	// Arrange
	handler, notifier := newTestHandler(store.NewMemoryStore())
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s %s status = %d, want 200", method, target, rr.Code)
		}
		return rr
	}

	// Act
	do(http.MethodPost, GroceriesPath, `{"name":"Milk","quantity":2,"value":1.50}`)
	do(http.MethodPost, GroceriesPath, `{"name":"Eggs","quantity":12,"value":3.00}`)
	do(http.MethodPut, GroceriesPath, `{"id":0,"name":"Milk","quantity":1,"value":1.50}`)
	do(http.MethodDelete, GroceriesPath+"?Id=1", "")
	rr := do(http.MethodGet, GroceriesPath, "")

	// Assert
	var items []model.Item
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("Failed to decode items: %v", err)
	}
	want := model.Item{ID: 0, Name: "Milk", Quantity: 1, Value: decimal.RequireFromString("1.50")}
	if len(items) != 1 || !items[0].Equal(want) {
		t.Errorf("items = %+v, want [%+v]", items, want)
	}
	if got := len(notifier.Events()); got != 4 {
		t.Errorf("published %d events, want 4", got)
	}
}
