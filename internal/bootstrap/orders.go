package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-orderflow/internal/disputes"
	"github.com/angelmondragon/packfinderz-orderflow/internal/ledger"
	"github.com/angelmondragon/packfinderz-orderflow/internal/orders"
	"github.com/angelmondragon/packfinderz-orderflow/internal/refunds"
	"github.com/angelmondragon/packfinderz-orderflow/internal/reviews"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/metrics"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
)

// OrderStack is the order facade and the collaborators the api and the cron
// worker both reach into.
type OrderStack struct {
	Orders  orders.Service
	Reviews reviews.Tracker
	Outbox  *outbox.Service
}

// Orders builds the order facade over client. Order metrics register on reg.
func (rt *Runtime) Orders(client *db.Client, reg prometheus.Registerer) OrderStack {
	conn := client.DB()
	ledgerService, err := ledger.NewService(ledger.NewRepository(conn))
	rt.Must("ledger service", err)
	refundService, err := refunds.NewService(refunds.NewRepository(conn), ledgerService, nil)
	rt.Must("refund service", err)
	disputeService, err := disputes.NewService(disputes.NewRepository(conn), refundService, nil)
	rt.Must("dispute service", err)
	tracker, err := reviews.NewTracker(reviews.TrackerParams{
		Repository:     reviews.NewRepository(conn),
		PromptLimit:    rt.Config.Orders.ReviewPromptThreshold,
		PromptInterval: rt.Config.Orders.ReviewPromptInterval,
	})
	rt.Must("review tracker", err)

	emitter := outbox.NewService(outbox.NewRepository(conn), rt.Logger)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn),
		Tx:         client,
		Outbox:     emitter,
		Refunds:    refundService,
		Disputes:   disputeService,
		Reviews:    tracker,
		Metrics:    metrics.NewOrderMetrics(reg),
		Logger:     rt.Logger,
	})
	rt.Must("order service", err)
	return OrderStack{Orders: orderService, Reviews: tracker, Outbox: emitter}
}
