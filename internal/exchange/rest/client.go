package rest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"

	"orderdesk/internal/exchange"
	"orderdesk/internal/order"
)

const (
	Venue          = "rest"
	placeOrderPath = "/v1/orders"
	recvWindow     = "5000"
)

var errUnexpectedStatus = errors.New("unexpected status code")

// Client - клиент REST API биржи с HMAC-подписью и circuit breaker.
type Client struct {
	APIKey     string
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	ProxyAddr string // host:port SOCKS5, пусто - напрямую
	Timeout   time.Duration
}

// placeOrderRequest - тело запроса на создание ордера
type placeOrderRequest struct {
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`      // Buy, Sell
	OrderType     string `json:"orderType"` // Market, Limit
	Qty           string `json:"qty"`
	Price         string `json:"price,omitempty"`
	TimeInForce   string `json:"timeInForce,omitempty"`
}

// placeOrderResponse - ответ биржи; RetCode != 0 означает отказ
type placeOrderResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	} `json:"result"`
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest exchange: base URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		APIKey:    cfg.APIKey,
		SecretKey: cfg.SecretKey,
		BaseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		logger:    logger,
	}

	client.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rest-exchange",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker changed state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	httpClient, err := newHTTPClient(cfg.ProxyAddr, timeout)
	if err != nil {
		return nil, err
	}
	client.HTTPClient = httpClient
	return client, nil
}

func newHTTPClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	if proxyAddr == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	dialer, err := proxy.FromURL(&url.URL{Scheme: "socks5h", Host: proxyAddr}, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func (c *Client) Venue() string {
	return Venue
}

// PlaceOrder отправляет ордер на биржу. Ошибка всегда *exchange.PlacementError.
func (c *Client) PlaceOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	if err := exchange.CheckOrder(Venue, o); err != nil {
		return nil, err
	}

	body, err := json.Marshal(newPlaceOrderRequest(o))
	if err != nil {
		return nil, &exchange.PlacementError{Venue: Venue, Reason: "failed to marshal order request", Err: err}
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		respBody, err := c.doPost(ctx, placeOrderPath, body)
		if err != nil {
			return nil, err
		}

		var resp placeOrderResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if resp.RetCode != 0 {
			return nil, fmt.Errorf("exchange error: %d - %s", resp.RetCode, resp.RetMsg)
		}
		return &resp, nil
	})
	if err != nil {
		reason := "request failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "circuit breaker open"
		}
		return nil, &exchange.PlacementError{Venue: Venue, Reason: reason, Err: err}
	}

	resp := result.(*placeOrderResponse)
	c.logger.Debug("rest exchange accepted order",
		zap.Int64("order_id", o.ID),
		zap.String("venue_order_id", resp.Result.OrderID),
	)
	return o, nil
}

func newPlaceOrderRequest(o *order.Order) placeOrderRequest {
	req := placeOrderRequest{
		ClientOrderID: exchange.ClientOrderID(o),
		Symbol:        strings.ToUpper(o.Instrument),
		Side:          "Buy",
		OrderType:     "Market",
		Qty:           o.Quantity.String(),
	}
	if o.Side == order.SideSell {
		req.Side = "Sell"
	}
	if o.Type == order.TypeLimit {
		req.OrderType = "Limit"
		req.Price = o.LimitPrice.String()
		req.TimeInForce = "GTC"
	}
	return req
}

// sign создает HMAC SHA256 подпись: timestamp + apiKey + recvWindow + body
func (c *Client) sign(timestamp, payload string) string {
	h := hmac.New(sha256.New, []byte(c.SecretKey))
	h.Write([]byte(timestamp + c.APIKey + recvWindow + payload))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Client) doPost(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("X-API-KEY", c.APIKey)
	req.Header.Set("X-SIGN", c.sign(timestamp, string(body)))
	req.Header.Set("X-TIMESTAMP", timestamp)
	req.Header.Set("X-RECV-WINDOW", recvWindow)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d: %s", errUnexpectedStatus, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// CircuitBreaker возвращает circuit breaker клиента
func (c *Client) CircuitBreaker() *gobreaker.CircuitBreaker {
	return c.cb
}
