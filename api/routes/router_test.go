package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderflow/internal/notifications"
	"github.com/angelmondragon/packfinderz-orderflow/internal/orders"
	pkgAuth "github.com/angelmondragon/packfinderz-orderflow/pkg/auth"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrdersService struct {
	applyCalls atomic.Int32
}

func (s *stubOrdersService) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderView, error) {
	return &orders.OrderView{ID: uuid.New(), Status: enums.OrderStatusPending}, nil
}

func (s *stubOrdersService) ApplyAction(ctx context.Context, input orders.ApplyActionInput) (*orders.OrderView, error) {
	s.applyCalls.Add(1)
	return &orders.OrderView{ID: input.OrderID, Status: enums.OrderStatusAccepted}, nil
}

func (s *stubOrdersService) GetOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*orders.OrderView, error) {
	return &orders.OrderView{ID: orderID, BuyerID: actor.UserID, Status: enums.OrderStatusPending}, nil
}

func (s *stubOrdersService) ResolveRefund(ctx context.Context, input orders.ResolveRefundInput) (*orders.OrderView, error) {
	return &orders.OrderView{}, nil
}

func (s *stubOrdersService) ResolveDispute(ctx context.Context, input orders.ResolveDisputeInput) (*orders.OrderView, error) {
	return &orders.OrderView{}, nil
}

func (s *stubOrdersService) RecordReview(ctx context.Context, lineItemID uuid.UUID, actor orders.Actor) (*models.ReviewObligation, error) {
	return &models.ReviewObligation{OrderLineItemID: lineItemID, BuyerID: actor.UserID}, nil
}

func (s *stubOrdersService) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", ActionRateLimit: 100},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "packfinderz", ExpirationMinutes: 60},
	}
}

func newTestRouter(t *testing.T, svc orders.Service) (http.Handler, *config.Config) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	redisClient, err := redis.New(context.Background(), config.RedisConfig{Address: mr.Addr()}, logg)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	return NewRouter(cfg, logg, stubPinger{}, redisClient, svc, nil, stubNotificationsService{}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.Subject{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, &stubOrdersService{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyPingsDependencies(t *testing.T) {
	router, _ := newTestRouter(t, &stubOrdersService{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestOrderRoutesRejectMissingJWT(t *testing.T) {
	router, _ := newTestRouter(t, &stubOrdersService{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/order/"+uuid.NewString(), nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOrderDetailWithJWT(t *testing.T) {
	router, cfg := newTestRouter(t, &stubOrdersService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/order/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router, cfg := newTestRouter(t, &stubOrdersService{})
	path := "/api/v1/admin/refunds/" + uuid.NewString() + "/approve"

	req := httptest.NewRequest(http.MethodPut, path, nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleBuyer))
	req.Header.Set("Idempotency-Key", uuid.NewString())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPut, path, nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleAdmin))
	req.Header.Set("Idempotency-Key", uuid.NewString())
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReviewRoutesRequireBuyer(t *testing.T) {
	router, cfg := newTestRouter(t, &stubOrdersService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews/pending", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleDistributor))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestCreateOrderIsAdminOnly(t *testing.T) {
	router, cfg := newTestRouter(t, &stubOrdersService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleDistributor))
	req.Header.Set("Idempotency-Key", uuid.NewString())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestOrderActionsRequireIdempotencyKey(t *testing.T) {
	svc := &stubOrdersService{}
	router, cfg := newTestRouter(t, svc)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/order/"+uuid.NewString()+"/accept", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleDistributor))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.applyCalls.Load() != 0 {
		t.Fatal("service should not run without idempotency key")
	}
}

func TestOrderActionReplaysWithSameIdempotencyKey(t *testing.T) {
	svc := &stubOrdersService{}
	router, cfg := newTestRouter(t, svc)
	path := "/api/v1/order/" + uuid.NewString() + "/accept"
	token := bearer(t, cfg, enums.ActorRoleDistributor)
	key := uuid.NewString()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPut, path, nil)
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", key)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, resp.Code, resp.Body.String())
		}
	}
	if calls := svc.applyCalls.Load(); calls != 1 {
		t.Fatalf("expected one service call got %d", calls)
	}
}
