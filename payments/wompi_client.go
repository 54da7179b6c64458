package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/anjiri1684/studio_booking/utils"
	"github.com/tidwall/gjson"
)

// WompiClient talks to the gateway REST API. It holds no state besides the
// cached acceptance token.
type WompiClient struct {
	cfg  config.GatewayConfig
	http *http.Client

	tokenMu          sync.RWMutex
	acceptanceToken  string
	acceptanceExpiry time.Time
}

var _ Gateway = (*WompiClient)(nil)

func NewWompiClient(cfg config.GatewayConfig) *WompiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WompiClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *WompiClient) GenerateReference() string {
	return utils.NewReference("SUB")
}

func (c *WompiClient) CreatePaymentSource(ctx context.Context, token, customerEmail string) (string, error) {
	acceptance, err := c.getAcceptanceToken(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"type":             "CARD",
		"token":            token,
		"customer_email":   customerEmail,
		"acceptance_token": acceptance,
	}
	raw, err := c.do(ctx, http.MethodPost, "/payment_sources", payload, c.cfg.PrivateKey)
	if err != nil {
		return "", err
	}

	sourceID := gjson.GetBytes(raw, "data.id").String()
	if sourceID == "" {
		return "", &GatewayError{Message: "payment source response without id"}
	}
	return sourceID, nil
}

func (c *WompiClient) CreateTransaction(ctx context.Context, req TransactionRequest) (Transaction, error) {
	payload := map[string]interface{}{
		"amount_in_cents": req.AmountInCents,
		"currency":        req.Currency,
		"customer_email":  req.CustomerEmail,
		"reference":       req.Reference,
		"signature":       c.GenerateIntegritySignature(req.Reference, req.AmountInCents, req.Currency),
		"recurrent":       req.Recurring,
		"payment_method":  map[string]interface{}{"installments": 1},
	}
	if req.PaymentSourceID != "" {
		if id, err := strconv.ParseInt(req.PaymentSourceID, 10, 64); err == nil {
			payload["payment_source_id"] = id
		} else {
			payload["payment_source_id"] = req.PaymentSourceID
		}
	}

	raw, err := c.do(ctx, http.MethodPost, "/transactions", payload, c.cfg.PrivateKey)
	if err != nil {
		return Transaction{}, err
	}
	return parseTransaction(raw)
}

func (c *WompiClient) GetTransactionByID(ctx context.Context, id string) (Transaction, error) {
	raw, err := c.do(ctx, http.MethodGet, "/transactions/"+id, nil, c.cfg.PublicKey)
	if err != nil {
		return Transaction{}, err
	}
	return parseTransaction(raw)
}

func (c *WompiClient) VerifyEventChecksum(payload []byte) bool {
	return VerifyEventChecksum(payload, c.cfg.EventsSecret)
}

func (c *WompiClient) GenerateIntegritySignature(reference string, amountInCents int64, currency string) string {
	return IntegritySignature(reference, amountInCents, currency, c.cfg.IntegritySecret)
}

func (c *WompiClient) getAcceptanceToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.acceptanceToken != "" && time.Now().Before(c.acceptanceExpiry) {
		token := c.acceptanceToken
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.acceptanceToken != "" && time.Now().Before(c.acceptanceExpiry) {
		return c.acceptanceToken, nil
	}

	raw, err := c.do(ctx, http.MethodGet, "/merchants/"+c.cfg.PublicKey, nil, "")
	if err != nil {
		return "", err
	}
	token := gjson.GetBytes(raw, "data.presigned_acceptance.acceptance_token").String()
	if token == "" {
		return "", &GatewayError{Message: "merchant response without acceptance token"}
	}

	c.acceptanceToken = token
	c.acceptanceExpiry = time.Now().Add(10 * time.Minute)
	return token, nil
}

func (c *WompiClient) do(ctx context.Context, method, path string, payload interface{}, key string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &GatewayError{Message: "encode request", Err: err}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, &GatewayError{Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", key))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Message: fmt.Sprintf("%s %s", method, path), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := gjson.GetBytes(raw, "error.reason").String()
		if reason == "" {
			reason = gjson.GetBytes(raw, "error.type").String()
		}
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: reason}
	}
	return raw, nil
}

func parseTransaction(raw []byte) (Transaction, error) {
	return transactionFrom(gjson.GetBytes(raw, "data"))
}

func transactionFrom(data gjson.Result) (Transaction, error) {
	txn := Transaction{
		ID:                data.Get("id").String(),
		Status:            NormalizeStatus(data.Get("status").String()),
		Reference:         data.Get("reference").String(),
		PaymentMethodType: data.Get("payment_method_type").String(),
		PaymentSourceID:   data.Get("payment_source_id").String(),
	}
	if txn.ID == "" {
		return Transaction{}, &GatewayError{Message: "transaction response without id"}
	}
	return txn, nil
}
