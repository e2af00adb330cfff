package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubOrderService struct {
	listParams  pagination.Params
	listStatus  string
	statusInput string
	actor       *outbox.ActorRef
	deleted     uuid.UUID
	updateErr   error
}

func (s *stubOrderService) RecordOrder(context.Context, orders.RecordInput) (*orders.RecordResult, error) {
	return nil, nil
}

func (s *stubOrderService) UpdateStatus(_ context.Context, id uuid.UUID, status string, actor *outbox.ActorRef) (*orders.OrderDTO, error) {
	s.statusInput = status
	s.actor = actor
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &orders.OrderDTO{ID: id, Status: enums.OrderStatus(status)}, nil
}

func (s *stubOrderService) GetOrder(_ context.Context, id uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: id, Status: enums.OrderStatusPending}, nil
}

func (s *stubOrderService) ListOrders(_ context.Context, params pagination.Params, status string) (*orders.OrderList, error) {
	s.listParams = params
	s.listStatus = status
	return &orders.OrderList{
		Orders:     []orders.OrderDTO{{ID: uuid.New(), Status: enums.OrderStatusPending}},
		Stats:      orders.OrderStats{Total: 3, Pending: 1, Confirmed: 1, Delivered: 1},
		NextCursor: "next",
	}, nil
}

func (s *stubOrderService) DeleteOrder(_ context.Context, id uuid.UUID, actor *outbox.ActorRef) error {
	s.deleted = id
	s.actor = actor
	return nil
}

func orderRouter(svc orders.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithSubject(r.Context(), "admin@example.com", enums.ActorRoleAdmin.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/api/admin/orders", AdminListOrders(svc, nil))
	r.Get("/api/admin/orders/{orderId}", AdminGetOrder(svc, nil))
	r.Put("/api/admin/orders/{orderId}", AdminUpdateOrderStatus(svc, nil))
	r.Delete("/api/admin/orders/{orderId}", AdminDeleteOrder(svc, nil))
	return r
}

func TestAdminListOrders(t *testing.T) {
	svc := &stubOrderService{}
	rec := httptest.NewRecorder()
	orderRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders?limit=10&cursor=abc&status=pending", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["success"] != true || payload["cursor"] != "next" {
		t.Fatalf("unexpected payload %v", payload)
	}
	stats, _ := payload["stats"].(map[string]any)
	if stats["total"] != 3.0 || stats["delivered"] != 1.0 {
		t.Fatalf("unexpected stats %v", stats)
	}
	if svc.listParams.Limit != 10 || svc.listParams.Cursor != "abc" || svc.listStatus != "pending" {
		t.Fatalf("unexpected list input %+v %s", svc.listParams, svc.listStatus)
	}
}

func TestAdminListOrdersRejectsBadLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	orderRouter(&stubOrderService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders?limit=1000", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminUpdateOrderStatusPassesActor(t *testing.T) {
	svc := &stubOrderService{}
	id := uuid.New()
	rec := httptest.NewRecorder()
	orderRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/orders/"+id.String(), strings.NewReader(`{"status":"confirmed"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.statusInput != "confirmed" {
		t.Fatalf("unexpected status %s", svc.statusInput)
	}
	if svc.actor == nil || svc.actor.Subject != "admin@example.com" || svc.actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", svc.actor)
	}
}

func TestAdminUpdateOrderStatusConflict(t *testing.T) {
	svc := &stubOrderService{updateErr: pkgerrors.Wrap(pkgerrors.CodeStateConflict, orders.ErrStatusTransition, "invalid status transition")}
	rec := httptest.NewRecorder()
	orderRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/orders/"+uuid.NewString(), strings.NewReader(`{"status":"pending"}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

func TestAdminGetAndDeleteOrder(t *testing.T) {
	svc := &stubOrderService{}
	id := uuid.New()

	rec := httptest.NewRecorder()
	orderRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders/"+id.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	orderRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/admin/orders/"+id.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.deleted != id || svc.actor == nil {
		t.Fatalf("delete not forwarded with actor")
	}
}
