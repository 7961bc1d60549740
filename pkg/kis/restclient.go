// Package kis is the thin REST client for the KIS open API: credential
// issuance for the realtime feed, current-price snapshots, and cash order
// placement.
package kis

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

	"tradesignal/internal/kis/codec"
)

// Transaction ids for the REST endpoints used here.
const (
	trIDInquirePrice = "FHKST01010100"
	trIDOrderBuy     = "TTTC0802U"
	trIDOrderSell    = "TTTC0801U"
)

// Credential lifetimes. The vendor does not return an expiry for approval
// keys; it rotates daily.
const approvalKeyTTL = 23 * time.Hour

type RESTClient struct {
	baseURL    string
	appKey     string
	appSecret  string
	httpClient *http.Client

	mu            sync.Mutex
	approvalKey   string
	approvalUntil time.Time
	accessToken   string
	accessUntil   time.Time

	// last observed accumulated volume per instrument; snapshot ticks carry
	// the delta so they mix with per-execution realtime volumes.
	lastAcc map[string]int64
}

func NewRESTClient(baseURL, appKey, appSecret string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		appKey:     appKey,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: timeout},
		lastAcc:    make(map[string]int64),
	}
}

// ApprovalKey returns the WebSocket feed token, requesting a fresh one when
// the cached key has aged out. Implements the feed.TokenProvider contract.
func (c *RESTClient) ApprovalKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.approvalKey != "" && time.Now().Before(c.approvalUntil) {
		key := c.approvalKey
		c.mu.Unlock()
		return key, nil
	}
	c.mu.Unlock()

	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"secretkey":  c.appSecret,
	}

	var out approvalResponse
	if err := c.postJSON(ctx, "/oauth2/Approval", nil, body, &out); err != nil {
		return "", fmt.Errorf("approval key request: %w", err)
	}
	if out.ApprovalKey == "" {
		return "", fmt.Errorf("approval key response was empty")
	}

	c.mu.Lock()
	c.approvalKey = out.ApprovalKey
	c.approvalUntil = time.Now().Add(approvalKeyTTL)
	c.mu.Unlock()

	return out.ApprovalKey, nil
}

// accessTokenLocked returns a valid Bearer token for REST calls.
func (c *RESTClient) accessTokenValue(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && time.Now().Before(c.accessUntil) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"appsecret":  c.appSecret,
	}

	var out tokenResponse
	if err := c.postJSON(ctx, "/oauth2/tokenP", nil, body, &out); err != nil {
		return "", fmt.Errorf("access token request: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("access token response was empty")
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	// renew a minute early
	c.accessUntil = time.Now().Add(time.Duration(out.ExpiresIn-60) * time.Second)
	c.mu.Unlock()

	return out.AccessToken, nil
}

// GetPrice fetches the current-price snapshot for an instrument and shapes
// it as a PolledSnapshot tick.
func (c *RESTClient) GetPrice(ctx context.Context, code string) (*codec.TickEvent, error) {
	token, err := c.accessTokenValue(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"%s/uapi/domestic-stock/v1/quotations/inquire-price?FID_COND_MRKT_DIV_CODE=J&FID_INPUT_ISCD=%s",
		c.baseURL, code,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuthHeaders(req, token, trIDInquirePrice)

	var out priceOutput
	if err := c.doEnvelope(req, &out); err != nil {
		return nil, err
	}

	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric price %q: %w", out.Price, err)
	}
	open, _ := strconv.ParseFloat(out.Open, 64)
	high, _ := strconv.ParseFloat(out.High, 64)
	low, _ := strconv.ParseFloat(out.Low, 64)
	accVolume, _ := strconv.ParseInt(out.AccVolume, 10, 64)

	// Volume is the increment since the previous poll; the first observation
	// of an instrument (or a session reset) reports zero.
	c.mu.Lock()
	prev, seen := c.lastAcc[code]
	c.lastAcc[code] = accVolume
	c.mu.Unlock()
	var volume int64
	if seen && accVolume >= prev {
		volume = accVolume - prev
	}

	return &codec.TickEvent{
		InstrumentCode: code,
		Price:          price,
		Open:           open,
		High:           high,
		Low:            low,
		Volume:         volume,
		AccVolume:      accVolume,
		Timestamp:      time.Now().In(codec.KST),
		Source:         codec.SourcePolledSnapshot,
	}, nil
}

func (c *RESTClient) setAuthHeaders(req *http.Request, token, trID string) {
	req.Header.Set("content-type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", trID)
}

// postJSON posts a JSON body and decodes the response into out.
func (c *RESTClient) postJSON(ctx context.Context, path string, headers map[string]string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json; charset=utf-8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("kis error: %s", respBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doEnvelope executes a prepared request and decodes the rt_cd envelope,
// then the output block into out.
func (c *RESTClient) doEnvelope(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("kis error: %s", respBody)
	}

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.RtCd != "0" {
		return fmt.Errorf("kis error %s: %s", envelope.MsgCd, envelope.Msg1)
	}

	return unmarshalOutput(envelope, out)
}

func unmarshalOutput(envelope Response, out any) error {
	if err := json.Unmarshal(envelope.Output, out); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	return nil
}
