// Package rest talks to a hosted gateway over HTTP: PostgREST style record
// endpoints under /rest/v1, object storage under /storage/v1 and the auth
// server under /auth/v1.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"plaza/internal/gateway"
	"plaza/internal/metrics"
	"plaza/internal/models"
)

const backend = "rest"

type Config struct {
	URL         string
	AnonKey     string
	RedirectURL string // 第三方登录完成后回跳地址
	Timeout     time.Duration
	HTTPClient  *http.Client

	// PersistSession 单用户进程（命令行）保存 Exchange 得到的会话；服务端多用户共享客户端时保持 false
	PersistSession bool
}

// Client 同时实现 gateway.Records、gateway.Blobs 和 gateway.Auth
type Client struct {
	baseURL     string
	anonKey     string
	redirectURL string
	persist     bool
	http        *http.Client
	log         *zap.SugaredLogger

	mu        sync.RWMutex
	session   *oauth2.Token
	identity  *models.Identity
	listeners map[int]func(*models.Identity)
	nextID    int
}

var (
	_ gateway.Records = (*Client)(nil)
	_ gateway.Blobs   = (*Client)(nil)
	_ gateway.Auth    = (*Client)(nil)
)

func New(cfg Config, logger *zap.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		anonKey:     cfg.AnonKey,
		redirectURL: cfg.RedirectURL,
		persist:     cfg.PersistSession,
		http:        hc,
		log:         logger.Sugar().Named("gateway.rest"),
		listeners:   make(map[int]func(*models.Identity)),
	}
}

// bearer 请求用户的 token 优先，其次是本地会话，最后退回匿名 key
func (c *Client) bearer(ctx context.Context) string {
	if token := gateway.AccessToken(ctx); token != "" {
		return token
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil && c.session.AccessToken != "" {
		return c.session.AccessToken
	}
	return c.anonKey
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer(ctx))
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, endpoint string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", endpoint, err)
	}
	req, err := c.newRequest(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do 发送请求，非 2xx 响应统一转换为 *gateway.GatewayError
func (c *Client) do(op string, req *http.Request) ([]byte, http.Header, error) {
	start := time.Now()
	body, header, err := c.roundTrip(req)
	metrics.ObserveGateway(backend, op, start, err)
	if err != nil {
		c.log.Debugf("%s %s failed: %v", req.Method, req.URL.Path, err)
	}
	return body, header, err
}

func (c *Client) roundTrip(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &gateway.GatewayError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &gateway.GatewayError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Header, decodeError(resp.StatusCode, body)
	}
	return body, resp.Header, nil
}

type errorBody struct {
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
}

// decodeError 兼容 PostgREST、存储服务和认证服务三种错误格式
func decodeError(status int, body []byte) *gateway.GatewayError {
	ge := &gateway.GatewayError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		ge.Message = strings.TrimSpace(string(body))
		return ge
	}
	for _, m := range []string{eb.Message, eb.Msg, eb.ErrorDescription, eb.Error} {
		if m != "" {
			ge.Message = m
			break
		}
	}
	ge.Code = eb.ErrorCode
	if ge.Code == "" && len(eb.Code) > 0 {
		ge.Code = strings.Trim(string(eb.Code), `"`)
	}
	return ge
}

func recordPath(collection string) string {
	return "/rest/v1/" + url.PathEscape(collection)
}

func encodeFilters(v url.Values, filters []gateway.Filter) {
	for _, f := range filters {
		v.Add(f.Column, encodeFilter(f))
	}
}

func encodeFilter(f gateway.Filter) string {
	if f.Op == gateway.OpIn {
		vals, _ := f.Value.([]any)
		parts := make([]string, len(vals))
		for i, x := range vals {
			parts[i] = formatValue(x)
		}
		return "in.(" + strings.Join(parts, ",") + ")"
	}
	if f.Value == nil {
		return "is.null"
	}
	return "eq." + formatValue(f.Value)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		if strings.ContainsAny(x, `,()"`) {
			return strconv.Quote(x)
		}
		return x
	case *int64:
		if x == nil {
			return "null"
		}
		return strconv.FormatInt(*x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func encodeOrder(orders []gateway.Order) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		dir := "desc"
		if o.Ascending {
			dir = "asc"
		}
		parts[i] = o.Column + "." + dir
	}
	return strings.Join(parts, ",")
}

func (c *Client) Select(ctx context.Context, collection string, q gateway.Query) ([]json.RawMessage, error) {
	v := url.Values{}
	v.Set("select", "*")
	encodeFilters(v, q.Filters)
	if len(q.Order) > 0 {
		v.Set("order", encodeOrder(q.Order))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := c.newRequest(ctx, http.MethodGet, recordPath(collection)+"?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, _, err := c.do("select", req)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &models.SchemaError{Collection: collection, Err: err}
	}
	return rows, nil
}

func (c *Client) Insert(ctx context.Context, collection string, record any) (json.RawMessage, error) {
	req, err := c.jsonRequest(ctx, http.MethodPost, recordPath(collection), record)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	body, _, err := c.do("insert", req)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &models.SchemaError{Collection: collection, Err: err}
	}
	if len(rows) == 0 {
		return nil, &gateway.GatewayError{Status: http.StatusInternalServerError, Message: "insert into " + collection + " returned no rows"}
	}
	return rows[0], nil
}

func (c *Client) Update(ctx context.Context, collection string, filters []gateway.Filter, patch map[string]any) error {
	v := url.Values{}
	encodeFilters(v, filters)
	req, err := c.jsonRequest(ctx, http.MethodPatch, recordPath(collection)+"?"+v.Encode(), patch)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	_, _, err = c.do("update", req)
	return err
}

func (c *Client) Delete(ctx context.Context, collection string, filters []gateway.Filter) error {
	v := url.Values{}
	encodeFilters(v, filters)
	req, err := c.newRequest(ctx, http.MethodDelete, recordPath(collection)+"?"+v.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	_, _, err = c.do("delete", req)
	return err
}

// Count 使用 HEAD + Prefer: count=exact，从 Content-Range 读取总数
func (c *Client) Count(ctx context.Context, collection string, filters []gateway.Filter) (int, error) {
	v := url.Values{}
	v.Set("select", "*")
	encodeFilters(v, filters)
	req, err := c.newRequest(ctx, http.MethodHead, recordPath(collection)+"?"+v.Encode(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	_, header, err := c.do("count", req)
	if err != nil {
		return 0, err
	}
	return parseContentRange(header.Get("Content-Range"))
}

// parseContentRange 解析 "0-24/25" 或 "*/0"
func parseContentRange(value string) (int, error) {
	i := strings.LastIndexByte(value, '/')
	if i < 0 || i == len(value)-1 {
		return 0, &gateway.GatewayError{Message: "missing count in Content-Range " + strconv.Quote(value)}
	}
	total := value[i+1:]
	if total == "*" {
		return 0, &gateway.GatewayError{Message: "gateway did not return an exact count"}
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, &gateway.GatewayError{Message: "invalid Content-Range " + strconv.Quote(value), Err: err}
	}
	return n, nil
}
