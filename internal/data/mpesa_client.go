package data

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/meikanc/mpesa-backend/internal/biz"
	"github.com/meikanc/mpesa-backend/internal/conf"
	apperrors "github.com/meikanc/mpesa-backend/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	// stkStillProcessingCode is Daraja's error code for a status query on a
	// transaction the provider has not concluded yet.
	stkStillProcessingCode = "500.001.1001"

	// tokenExpirySlack refreshes the OAuth token slightly before Daraja
	// would reject it.
	tokenExpirySlack = 30 * time.Second

	defaultGatewayTimeout = 30 * time.Second
)

// mpesaGateway talks to the Daraja REST API: OAuth token exchange, STK push
// and STK status query.
type mpesaGateway struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	callbackURL    string
	hc             *http.Client
	log            *log.Helper

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewMpesaGateway creates the Daraja API client.
func NewMpesaGateway(c *conf.Bootstrap, logger log.Logger) biz.MpesaGateway {
	m := c.Mpesa
	baseURL := m.BaseURL
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if m.Env == "production" {
			baseURL = productionBaseURL
		}
	}
	return &mpesaGateway{
		baseURL:        baseURL,
		consumerKey:    m.ConsumerKey,
		consumerSecret: m.ConsumerSecret,
		shortcode:      m.Shortcode,
		passkey:        m.Passkey,
		callbackURL:    m.CallbackURL,
		hc:             &http.Client{Timeout: conf.Duration(m.Timeout, defaultGatewayTimeout)},
		log:            log.NewHelper(logger),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Authenticate exchanges the consumer credentials for an OAuth token,
// reusing the cached one until shortly before it expires.
func (g *mpesaGateway) Authenticate(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", apperrors.GatewayAuth(err)
	}
	req.SetBasicAuth(g.consumerKey, g.consumerSecret)

	resp, err := g.hc.Do(req)
	if err != nil {
		return "", apperrors.GatewayAuth(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.GatewayAuth(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.GatewayAuth(fmt.Errorf("token request returned %d: %s", resp.StatusCode, body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", apperrors.GatewayAuth(fmt.Errorf("malformed token response: %s", body))
	}

	expiresIn := 3600
	if n, err := strconv.Atoi(tok.ExpiresIn); err == nil && n > 0 {
		expiresIn = n
	}
	g.accessToken = tok.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(expiresIn)*time.Second - tokenExpirySlack)
	return g.accessToken, nil
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// InitiatePush sends the STK payment prompt. Daraja speaks whole shillings,
// so sub-shilling amounts are rejected before the wire.
func (g *mpesaGateway) InitiatePush(ctx context.Context, accessToken string, push *biz.StkPushRequest) (*biz.StkPushAck, error) {
	if !push.Amount.Whole() {
		return nil, apperrors.Validation("stk push amount %s must be whole shillings", push.Amount)
	}

	timestamp := time.Now().Format("20060102150405")
	payload := &stkPushPayload{
		BusinessShortCode: g.shortcode,
		Password:          g.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            push.Amount.Shillings(),
		PartyA:            push.PhoneNumber,
		PartyB:            g.shortcode,
		PhoneNumber:       push.PhoneNumber,
		CallBackURL:       g.callbackURL,
		AccountReference:  push.AccountReference,
		TransactionDesc:   push.Description,
	}

	body, status, err := g.post(ctx, accessToken, "/mpesa/stkpush/v1/processrequest", payload)
	if err != nil {
		return nil, apperrors.Gateway("", err)
	}
	if status != http.StatusOK {
		return nil, apperrors.Gateway(string(body), fmt.Errorf("stk push returned %d", status))
	}

	var ack stkPushResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, apperrors.Gateway(string(body), err)
	}
	if ack.ResponseCode != "0" {
		return nil, apperrors.Gateway(string(body), fmt.Errorf("stk push rejected with response code %s", ack.ResponseCode))
	}

	return &biz.StkPushAck{
		MerchantRequestID:   ack.MerchantRequestID,
		CheckoutRequestID:   ack.CheckoutRequestID,
		ResponseCode:        ack.ResponseCode,
		ResponseDescription: ack.ResponseDescription,
		CustomerMessage:     ack.CustomerMessage,
	}, nil
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// QueryStatus asks Daraja about a previously initiated STK transaction.
func (g *mpesaGateway) QueryStatus(ctx context.Context, accessToken, checkoutRequestID string) (*biz.StkQueryResult, error) {
	timestamp := time.Now().Format("20060102150405")
	payload := &stkQueryPayload{
		BusinessShortCode: g.shortcode,
		Password:          g.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	body, status, err := g.post(ctx, accessToken, "/mpesa/stkpushquery/v1/query", payload)
	if err != nil {
		return nil, apperrors.Gateway("", err)
	}

	var q stkQueryResponse
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, apperrors.Gateway(string(body), err)
	}
	if q.ErrorCode == stkStillProcessingCode {
		return &biz.StkQueryResult{Pending: true}, nil
	}
	if status != http.StatusOK {
		return nil, apperrors.Gateway(string(body), fmt.Errorf("stk query returned %d", status))
	}
	if q.ResultCode == "" {
		return &biz.StkQueryResult{Pending: true}, nil
	}

	code, err := strconv.Atoi(q.ResultCode)
	if err != nil {
		return nil, apperrors.Gateway(string(body), fmt.Errorf("unparseable result code %q", q.ResultCode))
	}
	return &biz.StkQueryResult{ResultCode: code, ResultDesc: q.ResultDesc}, nil
}

// password builds Daraja's base64(shortcode + passkey + timestamp) secret.
func (g *mpesaGateway) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.shortcode + g.passkey + timestamp))
}

func (g *mpesaGateway) post(ctx context.Context, accessToken, path string, payload interface{}) ([]byte, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
