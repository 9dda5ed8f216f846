package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Symbol string `query:"symbol" validate:"required,instrument"`
	From   string `query:"from" validate:"omitempty,timestamp"`
	Limit  int    `query:"limit" default:"10" validate:"gte=1,lte=100"`
}

func bindSample(t *testing.T, rawQuery string) (*sampleRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sample?"+rawQuery, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	out := &sampleRequest{}
	verr := ReadAndValidateRequest(c, out)
	if verr == nil {
		return out, nil
	}
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	return out, errs
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	req, errs := bindSample(t, "symbol=BINANCE:BTCUSDT&from=2024-01-02T03:04:05Z")
	require.Nil(t, errs)
	assert.Equal(t, 10, req.Limit)
	assert.Equal(t, "BINANCE:BTCUSDT", req.Symbol)
}

func TestReadAndValidateRequestReportsQueryNames(t *testing.T) {
	cases := []struct {
		query string
		field string
		code  string
	}{
		{"", "symbol", "ERR_REQUIRED"},
		{"symbol=BTC%20USDT", "symbol", "ERR_INSTRUMENT"},
		{"symbol=BTCUSDT&from=yesterday", "from", "ERR_TIMESTAMP"},
		{"symbol=BTCUSDT&limit=500", "limit", "ERR_LTE"},
	}
	for _, tc := range cases {
		t.Run(tc.code+"_"+tc.field, func(t *testing.T) {
			_, errs := bindSample(t, tc.query)
			require.Len(t, errs, 1)
			assert.Equal(t, tc.field, errs[0].Field)
			assert.Equal(t, tc.code, errs[0].Code)
			assert.NotEmpty(t, errs[0].Message)
		})
	}
}
