// Package gateway describes the hosted data platform plaza talks to: typed
// record collections, a blob store and an OAuth identity provider. Concrete
// backends live in the rest, sqlstore and memstore subpackages.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"plaza/internal/models"
)

const (
	Posts       = "posts"
	Comments    = "comments"
	Votes       = "votes"
	Communities = "communities"

	// PostImagesBucket 帖子图片所在的存储桶
	PostImagesBucket = "post-images"
)

// Op 过滤操作符
type Op string

const (
	OpEq Op = "eq"
	OpIn Op = "in"
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

func In[T any](column string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: vs}
}

type Order struct {
	Column    string
	Ascending bool
}

func Asc(column string) Order  { return Order{Column: column, Ascending: true} }
func Desc(column string) Order { return Order{Column: column} }

// Query 一次 select 的条件、排序和数量限制，Limit 为 0 表示不限
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// Records 记录集合的增删改查
type Records interface {
	Select(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
	Insert(ctx context.Context, collection string, record any) (json.RawMessage, error)
	Update(ctx context.Context, collection string, filters []Filter, patch map[string]any) error
	Delete(ctx context.Context, collection string, filters []Filter) error
	Count(ctx context.Context, collection string, filters []Filter) (int, error)
}

// Aggregator 支持一次分组统计的网关，返回 groupColumn -> 行数
type Aggregator interface {
	CountBy(ctx context.Context, collection, groupColumn string, filters []Filter) (map[int64]int, error)
}

type Blobs interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error
	PublicURL(bucket, path string) string
}

// SignInRequest 跳转到第三方登录所需的地址和 PKCE verifier
type SignInRequest struct {
	URL      string
	Verifier string
}

type Auth interface {
	// CurrentIdentity 返回当前会话用户，未登录时返回 nil, nil
	CurrentIdentity(ctx context.Context) (*models.Identity, error)
	// OnIdentityChange 注册登录状态变化回调，返回取消函数
	OnIdentityChange(fn func(*models.Identity)) (unsubscribe func())
	SignIn(ctx context.Context, provider string) (*SignInRequest, error)
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	SignOut(ctx context.Context) error
	// Lookup 通过 access token 查询用户
	Lookup(ctx context.Context, accessToken string) (*models.Identity, error)
}

// GatewayError 网关返回的失败，Message 原样透传给调用方
type GatewayError struct {
	Status  int
	Code    string
	Message string
	Err     error // transport failure, nil when the gateway answered
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if text := http.StatusText(e.Status); text != "" {
		return text
	}
	return fmt.Sprintf("gateway error %d", e.Status)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type accessTokenKey struct{}

// WithAccessToken 把当前请求用户的 access token 放进 context，网关调用以该用户身份执行
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// Providers 支持的第三方登录
var Providers = []string{"github", "google"}

func ValidProvider(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}
