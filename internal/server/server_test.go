package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/colegio/internal/clock"
	"github.com/smallbiznis/colegio/internal/config"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	feerecordrepo "github.com/smallbiznis/colegio/internal/feerecord/repository"
	feerecordservice "github.com/smallbiznis/colegio/internal/feerecord/service"
	liquidationservice "github.com/smallbiznis/colegio/internal/liquidation/service"
	"github.com/smallbiznis/colegio/internal/migration"
	"github.com/smallbiznis/colegio/internal/notification"
	"github.com/smallbiznis/colegio/internal/observability"
	obsmetrics "github.com/smallbiznis/colegio/internal/observability/metrics"
	"github.com/smallbiznis/colegio/internal/outbox"
	outboxdomain "github.com/smallbiznis/colegio/internal/outbox/domain"
	outboxrepo "github.com/smallbiznis/colegio/internal/outbox/repository"
	"github.com/smallbiznis/colegio/internal/payment/adapters"
	"github.com/smallbiznis/colegio/internal/payment/adapters/bolsa"
	"github.com/smallbiznis/colegio/internal/payment/adapters/mercadopago"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"github.com/smallbiznis/colegio/internal/payment/security"
	"github.com/smallbiznis/colegio/internal/payment/webhook"
	"github.com/smallbiznis/colegio/internal/providers/pdf"
	raterepo "github.com/smallbiznis/colegio/internal/rate/repository"
	rateservice "github.com/smallbiznis/colegio/internal/rate/service"
	receiptrepo "github.com/smallbiznis/colegio/internal/receipt/repository"
	receiptservice "github.com/smallbiznis/colegio/internal/receipt/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	bolsaAPIKey = "bcm-key"
	bolsaSecret = "bcm-secret"
	backendURL  = "https://colegio.example"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubStatusClient struct {
	mu          sync.Mutex
	payments    map[string]*paymentdomain.MercadoPagoPayment
	preferences map[string]*paymentdomain.MercadoPagoPreference
	err         error
}

func (c *stubStatusClient) GetPayment(ctx context.Context, paymentID string) (*paymentdomain.MercadoPagoPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", paymentdomain.ErrProviderUnavailable)
	}
	return p, nil
}

func (c *stubStatusClient) GetPreference(ctx context.Context, preferenceID string) (*paymentdomain.MercadoPagoPreference, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.preferences[preferenceID]
	if !ok {
		return nil, fmt.Errorf("%w: status 404", paymentdomain.ErrProviderUnavailable)
	}
	return p, nil
}

func (c *stubStatusClient) SearchPayments(ctx context.Context, externalReference string) ([]paymentdomain.MercadoPagoPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []paymentdomain.MercadoPagoPayment
	for _, p := range c.payments {
		if p.ExternalReference == externalReference {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (c *stubStatusClient) add(p *paymentdomain.MercadoPagoPayment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payments[strconv.FormatInt(p.ID, 10)] = p
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []string
}

func (e *recordingEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return errors.New("unexpected raw send")
}

func (e *recordingEmail) SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, subject)
	return nil
}

func (e *recordingEmail) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent)
}

type fixture struct {
	engine     *gin.Engine
	db         *gorm.DB
	clock      *clock.FakeClock
	mp         *stubStatusClient
	mail       *recordingEmail
	dispatcher *outbox.Dispatcher
}

func setup(t *testing.T) fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{
		BackendURL: backendURL,
		Bolsa:      config.BolsaConfig{APIKey: bolsaAPIKey, Secret: bolsaSecret},
		RateLimit:  config.RateLimitConfig{PollLockTTL: time.Second},
	}

	outboxRepo := outboxrepo.Provide()
	receipts := receiptservice.New(receiptservice.Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Repo:          receiptrepo.Provide(),
		FeeRecordRepo: feerecordrepo.Provide(),
		OutboxRepo:    outboxRepo,
	})
	feeRecords := feerecordservice.New(feerecordservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Repo:       feerecordrepo.Provide(),
		ReceiptSvc: receipts,
	})
	rates := rateservice.New(rateservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  raterepo.Provide(),
	})
	documents := pdf.New()
	liquidations := liquidationservice.New(liquidationservice.Params{
		Log:     log,
		RateSvc: rates,
		PDF:     documents,
	})

	verifier := security.NewVerifier(security.Params{
		Config: cfg,
		Policy: config.NewStaticWebhookPolicyHolder(config.WebhookPolicy{
			TimestampSkew: 300 * time.Second,
			MaxBodyBytes:  4096,
		}),
		Clock:  clk,
		Nonces: security.NewMemoryNonceStore(clk),
		Log:    log,
	})
	mp := &stubStatusClient{
		payments:    map[string]*paymentdomain.MercadoPagoPayment{},
		preferences: map[string]*paymentdomain.MercadoPagoPreference{},
	}
	mpAdapter := mercadopago.NewAdapter(mp, clk)
	payments := webhook.NewService(webhook.Params{
		DB:            db,
		Log:           log,
		Config:        cfg,
		Adapters:      adapters.NewRegistry(mpAdapter, bolsa.NewAdapter(clk)),
		Verifier:      verifier,
		StatusClient:  mp,
		MercadoPago:   mpAdapter,
		ReceiptSvc:    receipts,
		FeeRecordRepo: feerecordrepo.Provide(),
	})

	mail := &recordingEmail{}
	handler := notification.NewReceiptPaidHandler(notification.Params{
		DB:            db,
		Log:           log,
		Config:        cfg,
		Email:         mail,
		ReceiptRepo:   receiptrepo.Provide(),
		FeeRecordRepo: feerecordrepo.Provide(),
	})
	dispatcher, err := outbox.New(outbox.Params{
		DB:       db,
		Log:      log,
		Clock:    clk,
		Repo:     outboxRepo,
		Handlers: []outboxdomain.Handler{handler},
	})
	require.NoError(t, err)

	engine := NewEngine(observability.Config{LogLevel: "info"}, obsmetrics.NewHTTPMetricsWithRegisterer(prometheus.NewRegistry()))
	NewServer(ServerParams{
		Gin:            engine,
		Cfg:            cfg,
		PaymentSvc:     payments,
		ReceiptSvc:     receipts,
		FeeRecordSvc:   feeRecords,
		RateSvc:        rates,
		LiquidationSvc: liquidations,
		PDF:            documents,
	})

	return fixture{engine: engine, db: db, clock: clk, mp: mp, mail: mail, dispatcher: dispatcher}
}

func (f fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f fixture) doJSON(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req)
}

var nonceSeq atomic.Int64

func (f fixture) bolsaRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(security.HeaderAPIKey, bolsaAPIKey)
	req.Header.Set(security.HeaderTimestamp, strconv.FormatInt(f.clock.Now().Unix(), 10))
	req.Header.Set(security.HeaderNonce, "nonce-"+strconv.FormatInt(nonceSeq.Add(1), 10))
	req.Header.Set(security.HeaderSignature, security.Sign(bolsaSecret, []byte(body)))
	return req
}

func bolsaBody(code, status string) string {
	return fmt.Sprintf(`{"transaction_id":"tx-1","cod_cliente":%q,"estado_transaccion":%q,"timestamp":"2024-06-03T09:00:00Z"}`, code, status)
}

func feeRecordBody(paymentMethod string) string {
	body := map[string]any{
		"juicio_n":         "4521/2024",
		"caratula":         "Ruiz c/ Banco s/ cobro",
		"juzgado":          "Juzgado Comercial 1",
		"fecha_inicio":     "2024-05-20",
		"fecha":            "03/06/2024",
		"tasa_justicia":    12000,
		"derecho_fijo_5pc": "600,50",
		"total_depositado": 12600.5,
		"email":            "pagos@estudio.example",
	}
	if paymentMethod != "" {
		body["payment_method"] = paymentMethod
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func (f fixture) createFeeRecord(t *testing.T, paymentMethod string) feerecorddomain.Response {
	t.Helper()
	rec := f.doJSON(t, http.MethodPost, "/api/forms/derecho_fijo", feeRecordBody(paymentMethod))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data feerecorddomain.Response `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func decodeWebhook(t *testing.T, rec *httptest.ResponseRecorder) webhookResponse {
	t.Helper()
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func (f fixture) drainOutbox(t *testing.T) {
	t.Helper()
	for i := 0; i < 3; i++ {
		_, err := f.dispatcher.RunOnce(context.Background())
		require.NoError(t, err)
	}
}

func TestBolsaPaidTwiceSendsOneEmail(t *testing.T) {
	f := setup(t)
	record := f.createFeeRecord(t, "bcm_qr")
	require.Regexp(t, `^[0-9]{10}$`, record.PaymentID)

	rec := f.do(t, f.bolsaRequest("/forms/bcm/webhook", bolsaBody(record.PaymentID, "pagado")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeWebhook(t, rec).OK)

	rec = f.do(t, f.bolsaRequest("/api/forms/bcm/webhook", bolsaBody(record.PaymentID, "Aprobado")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	duplicate := decodeWebhook(t, rec)
	assert.True(t, duplicate.OK)
	assert.True(t, duplicate.Ignored)

	f.drainOutbox(t)
	assert.Equal(t, 1, f.mail.count())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/receipt-status?payment_id="+record.PaymentID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Status        string `json:"status"`
		Paid          bool   `json:"paid"`
		ReceiptNumber string `json:"receipt_number"`
		PaymentMethod string `json:"payment_method"`
		DownloadURL   string `json:"download_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "Paid", status.Status)
	assert.True(t, status.Paid)
	assert.Regexp(t, `^REC-[0-9a-f]{8}$`, status.ReceiptNumber)
	assert.Equal(t, "QR BCM", status.PaymentMethod)
	assert.Equal(t, backendURL+"/api/forms/download_receipt?derecho_fijo_uuid="+record.UUID, status.DownloadURL)
}

func TestBolsaWebhookRejections(t *testing.T) {
	f := setup(t)
	record := f.createFeeRecord(t, "bcm_boleta")

	tests := []struct {
		name      string
		request   func() *http.Request
		wantCode  int
		wantError string
	}{
		{
			name: "bad signature",
			request: func() *http.Request {
				req := f.bolsaRequest("/api/forms/bcm/webhook", bolsaBody(record.PaymentID, "pagado"))
				req.Header.Set(security.HeaderSignature, security.Sign("other-secret", []byte("x")))
				return req
			},
			wantCode:  http.StatusUnauthorized,
			wantError: "unauthorized",
		},
		{
			name: "wrong content type",
			request: func() *http.Request {
				req := f.bolsaRequest("/api/forms/bcm/webhook", bolsaBody(record.PaymentID, "pagado"))
				req.Header.Set("Content-Type", "text/plain")
				return req
			},
			wantCode:  http.StatusUnsupportedMediaType,
			wantError: "unsupported_media_type",
		},
		{
			name: "oversized body",
			request: func() *http.Request {
				return f.bolsaRequest("/api/forms/bcm/webhook", `{"pad":"`+strings.Repeat("a", 5000)+`"}`)
			},
			wantCode:  http.StatusRequestEntityTooLarge,
			wantError: "payload_too_large",
		},
		{
			name: "unknown client code",
			request: func() *http.Request {
				return f.bolsaRequest("/api/forms/bcm/webhook", bolsaBody("0000000001", "pagado"))
			},
			wantCode:  http.StatusBadRequest,
			wantError: "unknown_client_code",
		},
		{
			name: "missing client code",
			request: func() *http.Request {
				return f.bolsaRequest("/api/forms/bcm/webhook", `{"estado_transaccion":"pagado"}`)
			},
			wantCode:  http.StatusBadRequest,
			wantError: "missing_client_code",
		},
		{
			name: "status not paid",
			request: func() *http.Request {
				return f.bolsaRequest("/api/forms/bcm/webhook", bolsaBody(record.PaymentID, "rechazado"))
			},
			wantCode:  http.StatusConflict,
			wantError: "status_not_paid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.request())
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			resp := decodeWebhook(t, rec)
			assert.False(t, resp.OK)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}

	f.drainOutbox(t)
	assert.Zero(t, f.mail.count())

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/receipt-status?payment_id="+record.PaymentID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paid":false`)
}

func TestMercadoPagoWebhookReconciles(t *testing.T) {
	f := setup(t)
	record := f.createFeeRecord(t, "")
	f.mp.add(&paymentdomain.MercadoPagoPayment{
		ID:                555,
		Status:            "approved",
		ExternalReference: record.UUID,
		PaymentTypeID:     "credit_card",
	})

	rec := f.doJSON(t, http.MethodPost, "/api/forms/webhook", `{"type":"payment","data":{"id":"555"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeWebhook(t, rec).OK)

	// the simulator posts the same payment through the query string
	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/forms/webhook?topic=payment&id=555", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f.drainOutbox(t)
	assert.Equal(t, 1, f.mail.count())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/receipt-status?payment_id=555", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_method":"Mercado Pago(TC)"`)
	assert.Contains(t, rec.Body.String(), `"paid":true`)
}

func TestBolsaCheckoutPaidThroughMercadoPago(t *testing.T) {
	f := setup(t)
	record := f.createFeeRecord(t, "bcm_qr")
	f.mp.add(&paymentdomain.MercadoPagoPayment{ID: 222, Status: "approved", ExternalReference: record.UUID})

	rec := f.doJSON(t, http.MethodPost, "/api/forms/webhook", `{"type":"payment","data":{"id":"222"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, f.bolsaRequest("/api/forms/bcm/webhook", bolsaBody(record.PaymentID, "pagado")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeWebhook(t, rec)
	assert.True(t, resp.OK)
	assert.True(t, resp.Ignored)

	f.drainOutbox(t)
	assert.Equal(t, 1, f.mail.count())

	for _, key := range []string{record.PaymentID, "222"} {
		rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/receipt-status?payment_id="+key, nil))
		require.Equal(t, http.StatusOK, rec.Code, key)
		assert.Contains(t, rec.Body.String(), `"paid":true`)
	}
}

func TestMercadoPagoWebhookOutcomes(t *testing.T) {
	f := setup(t)

	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/api/forms/webhook?topic=merchant_order&id=9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeWebhook(t, rec)
	assert.True(t, resp.OK)
	assert.True(t, resp.Ignored)

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/api/forms/webhook?topic=payment", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_payment_id", decodeWebhook(t, rec).Error)

	f.mp.add(&paymentdomain.MercadoPagoPayment{ID: 77, Status: "approved", ExternalReference: "5f0c7f3e-0000-4000-8000-000000000000"})
	rec = f.doJSON(t, http.MethodPost, "/api/forms/webhook", `{"type":"payment","data":{"id":77}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_external_reference", decodeWebhook(t, rec).Error)

	f.mp.err = fmt.Errorf("%w: timeout", paymentdomain.ErrProviderUnavailable)
	rec = f.doJSON(t, http.MethodPost, "/api/forms/webhook", `{"type":"payment","data":{"id":"78"}}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp = decodeWebhook(t, rec)
	assert.False(t, resp.OK)
	assert.Equal(t, "provider_unavailable", resp.Error)
}

func TestPaymentStatusPoll(t *testing.T) {
	f := setup(t)
	record := f.createFeeRecord(t, "")
	f.mp.preferences["pref-1"] = &paymentdomain.MercadoPagoPreference{ID: "pref-1", ExternalReference: record.UUID}

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/payment_status/pref-1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	f.mp.add(&paymentdomain.MercadoPagoPayment{
		ID:                901,
		Status:            "approved",
		ExternalReference: record.UUID,
		PaymentTypeID:     "debit_card",
	})
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/payment_status/pref-1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"receipt_status":"Paid"`)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/receipt-status?payment_id=901", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_method":"Mercado Pago(TD)"`)
}

func TestReceiptStatusErrors(t *testing.T) {
	f := setup(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/receipt-status", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "payment_id", payload.Errors[0].Field)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/receipt-status?payment_id=nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestDownloadReceipt(t *testing.T) {
	f := setup(t)
	record := f.createFeeRecord(t, "bcm_qr")
	path := "/api/forms/download_receipt?derecho_fijo_uuid=" + record.UUID

	rec := f.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = f.do(t, f.bolsaRequest("/api/forms/bcm/webhook", bolsaBody(record.PaymentID, "pagado")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Recibo-REC-")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/download_receipt?derecho_fijo_uuid=2b1d2c6e-1111-4222-8333-444455556666", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeeRecordLifecycle(t *testing.T) {
	f := setup(t)
	record := f.createFeeRecord(t, "")
	assert.Equal(t, "12600.50", record.DueAmount)
	assert.Equal(t, "12000.00", record.JusticeFee)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/derecho_fijo/"+record.UUID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), record.ID)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/forms/derecho_fijo/"+record.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/forms/derecho_fijo/"+record.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.doJSON(t, http.MethodPost, "/api/forms/derecho_fijo", `{"juicio_n":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Type)

	rec = f.doJSON(t, http.MethodPost, "/api/forms/derecho_fijo", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Errors[0].Code)
}

func TestLiquidationAcrossRateChange(t *testing.T) {
	f := setup(t)

	rec := f.doJSON(t, http.MethodPost, "/api/rates", `{"rate_type":"BANK_ACTIVE","rate":5,"valid_from":"2024-01-01","valid_to":"2024-01-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.doJSON(t, http.MethodPost, "/api/rates", `{"rate_type":"activabna","rate":"7","valid_from":"15/01/2024"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := `{"capital":100000,"fecha_inicio":"2024-01-01","fecha_fin":"2024-01-31","tipo_calculo":"tasa_bancaria"}`
	rec = f.doJSON(t, http.MethodPost, "/api/forms/liquidaciones", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Days        int      `json:"dias"`
			Total       string   `json:"tasa_total"`
			FinalAmount string   `json:"monto_final"`
			Breakdown   []string `json:"detalle"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 30, resp.Data.Days)
	assert.Equal(t, "100498.63", resp.Data.FinalAmount)
	assert.Len(t, resp.Data.Breakdown, 2)

	rec = f.doJSON(t, http.MethodPost, "/api/forms/liquidaciones?format=pdf", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Liquidacion-01-01-2024-31-01-2024.pdf")

	gap := `{"capital":"1000","fecha_inicio":"2023-12-01","fecha_fin":"2024-01-10","tipo_calculo":"tasa_bancaria"}`
	rec = f.doJSON(t, http.MethodPost, "/api/forms/liquidaciones", gap)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "rate_coverage_gap", decodeError(t, rec).Type)

	rec = f.doJSON(t, http.MethodPost, "/api/forms/liquidaciones", `{"capital":"-5","fecha_inicio":"2024-01-01","fecha_fin":"2024-01-31","tipo_calculo":"tasa_bancaria"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_capital", decodeError(t, rec).Errors[0].Code)
}

func TestRateAdministration(t *testing.T) {
	f := setup(t)

	rec := f.doJSON(t, http.MethodPost, "/api/rates", `{"rate_type":"uva","rate":"3.5","valid_from":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/rates/"+created.Data.ID, nil))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = f.doJSON(t, http.MethodPut, "/api/rates/"+created.Data.ID, `{"valid_to":"2024-07-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/rates/"+created.Data.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/rates?rate_type=INFLATION_INDEX&include_deleted=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":true`)

	rec = f.doJSON(t, http.MethodPost, "/api/rates", `{"rate_type":"libor","rate":"1","valid_from":"2024-01-01"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_rate_type", decodeError(t, rec).Errors[0].Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/rates/123", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeePrice(t *testing.T) {
	f := setup(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/derecho_fijo/price", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.doJSON(t, http.MethodPut, "/api/derecho_fijo/price", `{"fecha":"2024-05-01","value":5000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/derecho_fijo/price", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data feerecorddomain.PriceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-06", resp.Data.Period)
	assert.Equal(t, "5000.00", resp.Data.Value)
	assert.True(t, resp.Data.Copied)
}

func TestHealth(t *testing.T) {
	f := setup(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
