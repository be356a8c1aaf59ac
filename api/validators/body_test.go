package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
)

type lineItem struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"price"`
}

type orderBody struct {
	BuyerID uuid.UUID  `json:"buyer_id" validate:"required"`
	Items   []lineItem `json:"items" validate:"required,min=1,dive"`
}

func decode(t *testing.T, body string) (orderBody, *pkgerrors.Error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	var dest orderBody
	err := DecodeJSONBody(req, &dest)
	if err == nil {
		return dest, nil
	}
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	return dest, typed
}

func TestDecodeJSONBodyAcceptsValidOrder(t *testing.T) {
	body := `{"buyer_id":"` + uuid.NewString() + `","items":[{"product_id":"` + uuid.NewString() + `","quantity":2,"unit_price":"12.50"}]}`
	dest, err := decode(t, body)
	require.Nil(t, err)
	assert.Equal(t, "12.5", dest.Items[0].UnitPrice.String())
}

func TestDecodeJSONBodyReportsFieldPaths(t *testing.T) {
	body := `{"buyer_id":"00000000-0000-0000-0000-000000000000","items":[{"product_id":"` + uuid.NewString() + `","quantity":0,"unit_price":"1.005"}]}`
	_, err := decode(t, body)
	require.NotNil(t, err)
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["buyer_id"])
	assert.Contains(t, details, "items[0].quantity")
	assert.Contains(t, details, "items[0].unit_price")
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"buyer_id":"` + uuid.NewString() + `","coupon":"x"}`,
		"trailing data": `{"buyer_id":"` + uuid.NewString() + `","items":[]} {}`,
		"wrong type":    `{"items":"many"}`,
	}
	for name, body := range cases {
		if _, err := decode(t, body); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
