package disputes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/internal/ledger"
	"github.com/angelmondragon/packfinderz-orderflow/internal/refunds"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/dbtest"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
)

type fixture struct {
	db       *gorm.DB
	refunds  refunds.Service
	disputes Service
	order    *models.Order
}

func newFixture(t *testing.T, total string) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	now := func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)
	refundSvc, err := refunds.NewService(refunds.NewRepository(db), ledgerSvc, now)
	require.NoError(t, err)
	disputeSvc, err := NewService(NewRepository(db), refundSvc, now)
	require.NoError(t, err)

	return &fixture{
		db:       db,
		refunds:  refundSvc,
		disputes: disputeSvc,
		order: &models.Order{
			ID:             uuid.New(),
			BuyerID:        uuid.New(),
			DistributorID:  uuid.New(),
			Status:         enums.OrderStatusDelivered,
			DeliveryMethod: enums.DeliveryMethodSelfPickup,
			OrderTotal:     decimal.RequireFromString(total),
		},
	}
}

func (f *fixture) refund(t *testing.T, amount string, outcome enums.RefundStatus) *models.RefundRequest {
	t.Helper()
	ctx := context.Background()
	refund, err := f.refunds.Request(ctx, f.db, f.order, refunds.RequestInput{
		Amount: decimal.RequireFromString(amount),
		Reason: "wrong flavour",
	}, f.order.BuyerID)
	require.NoError(t, err)
	if outcome == enums.RefundStatusPending {
		return refund
	}
	resolved, err := f.refunds.Resolve(ctx, f.db, f.order, refund, refunds.Resolution{Decision: outcome, ActorID: f.order.DistributorID})
	require.NoError(t, err)
	return resolved
}

func TestLodgeRequiresRejectedRefund(t *testing.T) {
	for _, status := range []enums.RefundStatus{enums.RefundStatusPending, enums.RefundStatusApproved} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, "80")
			refund := f.refund(t, "20", status)

			_, _, err := f.disputes.Lodge(context.Background(), f.db, f.order, LodgeInput{RefundID: refund.ID, Details: "unfair"}, f.order.BuyerID)
			assert.Equal(t, pkgerrors.CodeRefundNotRejected, pkgerrors.CodeOf(err))
		})
	}
}

func TestLodgeDefaultsAmountToOrderTotal(t *testing.T) {
	f := newFixture(t, "50")
	refund := f.refund(t, "50", enums.RefundStatusRejected)

	dispute, gotRefund, err := f.disputes.Lodge(context.Background(), f.db, f.order, LodgeInput{RefundID: refund.ID, Details: "items never arrived"}, f.order.BuyerID)
	require.NoError(t, err)
	assert.Equal(t, refund.ID, gotRefund.ID)
	assert.Equal(t, enums.DisputeStatusPending, dispute.Status)
	assert.True(t, dispute.DisputeAmount.Equal(decimal.NewFromInt(50)), "amount %s", dispute.DisputeAmount)

	stored, err := f.disputes.Get(context.Background(), f.db, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, "items never arrived", stored.DisputeDetails)
	assert.Nil(t, stored.DisputeResultDetails)
}

func TestLodgeAmountOverride(t *testing.T) {
	f := newFixture(t, "50")
	refund := f.refund(t, "10", enums.RefundStatusRejected)

	tooMuch := decimal.RequireFromString("50.01")
	_, _, err := f.disputes.Lodge(context.Background(), f.db, f.order, LodgeInput{RefundID: refund.ID, Details: "x", Amount: &tooMuch}, f.order.BuyerID)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	partial := decimal.RequireFromString("12.5")
	dispute, _, err := f.disputes.Lodge(context.Background(), f.db, f.order, LodgeInput{RefundID: refund.ID, Details: "x", Amount: &partial}, f.order.BuyerID)
	require.NoError(t, err)
	assert.True(t, dispute.DisputeAmount.Equal(partial))
}

func TestLodgeOncePerRefund(t *testing.T) {
	f := newFixture(t, "50")
	refund := f.refund(t, "10", enums.RefundStatusRejected)
	input := LodgeInput{RefundID: refund.ID, Details: "escalating"}

	_, _, err := f.disputes.Lodge(context.Background(), f.db, f.order, input, f.order.BuyerID)
	require.NoError(t, err)
	_, _, err = f.disputes.Lodge(context.Background(), f.db, f.order, input, f.order.BuyerID)
	assert.Equal(t, pkgerrors.CodeDisputeAlreadyExists, pkgerrors.CodeOf(err))
}

func TestLodgeGuards(t *testing.T) {
	f := newFixture(t, "50")
	refund := f.refund(t, "10", enums.RefundStatusRejected)
	ctx := context.Background()

	_, _, err := f.disputes.Lodge(ctx, f.db, f.order, LodgeInput{RefundID: refund.ID, Details: "x"}, f.order.DistributorID)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))

	_, _, err = f.disputes.Lodge(ctx, f.db, f.order, LodgeInput{RefundID: uuid.New(), Details: "x"}, f.order.BuyerID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, _, err = f.disputes.Lodge(ctx, f.db, f.order, LodgeInput{Details: "x"}, f.order.BuyerID)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, _, err = f.disputes.Lodge(ctx, f.db, f.order, LodgeInput{RefundID: refund.ID}, f.order.BuyerID)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	other := *f.order
	other.ID = uuid.New()
	_, _, err = f.disputes.Lodge(ctx, f.db, &other, LodgeInput{RefundID: refund.ID, Details: "x"}, f.order.BuyerID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestResolveRecordsTerminalStatusOnce(t *testing.T) {
	f := newFixture(t, "50")
	refund := f.refund(t, "10", enums.RefundStatusRejected)
	ctx := context.Background()
	admin := uuid.New()

	dispute, _, err := f.disputes.Lodge(ctx, f.db, f.order, LodgeInput{RefundID: refund.ID, Details: "x"}, f.order.BuyerID)
	require.NoError(t, err)

	_, err = f.disputes.Resolve(ctx, f.db, dispute, Resolution{Status: enums.DisputeStatusPending, ResultDetails: "n/a", ActorID: admin})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	_, err = f.disputes.Resolve(ctx, f.db, dispute, Resolution{Status: enums.DisputeStatusResolved, ActorID: admin})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	resolved, err := f.disputes.Resolve(ctx, f.db, dispute, Resolution{Status: enums.DisputeStatusResolved, ResultDetails: "distributor to credit 10", ActorID: admin})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, resolved.Status)

	stored, err := f.disputes.Get(ctx, f.db, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, stored.Status)
	require.NotNil(t, stored.DisputeResultDetails)
	assert.Equal(t, "distributor to credit 10", *stored.DisputeResultDetails)
	require.NotNil(t, stored.ResolvedBy)
	assert.Equal(t, admin, *stored.ResolvedBy)

	_, err = f.disputes.Resolve(ctx, f.db, resolved, Resolution{Status: enums.DisputeStatusRejected, ResultDetails: "again", ActorID: admin})
	assert.Equal(t, pkgerrors.CodeInvalidTransition, pkgerrors.CodeOf(err))

	_, err = f.disputes.Resolve(ctx, f.db, dispute, Resolution{Status: enums.DisputeStatusRejected, ResultDetails: "stale", ActorID: admin})
	assert.Equal(t, pkgerrors.CodeConcurrentModification, pkgerrors.CodeOf(err))

	list, err := f.disputes.ListForOrder(ctx, f.db, f.order.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type racingRepository struct {
	Repository
	createErr error
}

func (r racingRepository) WithTx(tx *gorm.DB) Repository { return r }

func (racingRepository) FindByRefund(context.Context, uuid.UUID) (*models.Dispute, error) {
	return nil, nil
}

func (r racingRepository) Create(context.Context, *models.Dispute) error {
	return r.createErr
}

func TestLodgeMapsUniqueRaceToAlreadyExists(t *testing.T) {
	f := newFixture(t, "50")
	refund := f.refund(t, "10", enums.RefundStatusRejected)
	svc, err := NewService(racingRepository{
		createErr: &pgconn.PgError{Code: "23505", ConstraintName: RefundDisputeIndex},
	}, f.refunds, nil)
	require.NoError(t, err)

	_, _, err = svc.Lodge(context.Background(), f.db, f.order, LodgeInput{RefundID: refund.ID, Details: "escalating"}, f.order.BuyerID)
	assert.Equal(t, pkgerrors.CodeDisputeAlreadyExists, pkgerrors.CodeOf(err))
}
