// Package memstore is an in-process gateway used for local development and
// tests. Records are kept as decoded JSON objects so filters and ordering
// behave like the hosted platform's.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"plaza/internal/gateway"
	"plaza/internal/metrics"
)

const backend = "memory"

type row = map[string]any

type Store struct {
	mu      sync.Mutex
	rows    map[string][]row
	nextID  map[string]int64
	unique  map[string][]string
	failure map[string]error
	calls   map[string]int
	clock   func() time.Time

	baseURL string
	objects map[string][]byte

	auth *authState
}

var (
	_ gateway.Records    = (*Store)(nil)
	_ gateway.Aggregator = (*Store)(nil)
	_ gateway.Blobs      = (*Store)(nil)
	_ gateway.Auth       = (*Store)(nil)
)

type Option func(*Store)

// WithClock 替换 created_at 的时间来源
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func WithBaseURL(baseURL string) Option {
	return func(s *Store) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithUnique 为集合增加唯一约束
func WithUnique(collection string, columns ...string) Option {
	return func(s *Store) { s.unique[collection] = columns }
}

func New(opts ...Option) *Store {
	s := &Store{
		rows:    make(map[string][]row),
		nextID:  make(map[string]int64),
		unique:  map[string][]string{gateway.Votes: {"post_id", "user_id"}},
		failure: make(map[string]error),
		calls:   make(map[string]int),
		clock:   time.Now,
		baseURL: "http://memory.local",
		objects: make(map[string][]byte),
		auth:    newAuthState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fail 让之后对 collection 的 op 操作返回 err，err 为 nil 时恢复
func (s *Store) Fail(collection, op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := op + ":" + collection
	if err == nil {
		delete(s.failure, key)
		return
	}
	s.failure[key] = err
}

// Calls 返回某类操作被调用的次数（所有集合合计）
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, c := range s.calls {
		if strings.HasPrefix(key, op+":") {
			n += c
		}
	}
	return n
}

// begin 必须持有锁时调用
func (s *Store) begin(op, collection string) error {
	key := op + ":" + collection
	s.calls[key]++
	return s.failure[key]
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func equal(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

func matches(r row, filters []gateway.Filter) (bool, error) {
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false, err
		}
		got := r[f.Column]
		switch f.Op {
		case gateway.OpIn:
			vals, _ := want.([]any)
			found := false
			for _, v := range vals {
				if equal(got, v) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			if !equal(got, want) {
				return false, nil
			}
		}
	}
	return true, nil
}

// compare 时间字符串按时间比较，数字按大小，其它按字符串
func compare(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			tx, errx := time.Parse(time.RFC3339Nano, x)
			ty, erry := time.Parse(time.RFC3339Nano, y)
			if errx == nil && erry == nil {
				return tx.Compare(ty)
			}
			return strings.Compare(x, y)
		}
	}
	switch {
	case a == nil && b != nil:
		return -1
	case a != nil && b == nil:
		return 1
	}
	return 0
}

func (s *Store) filtered(collection string, filters []gateway.Filter) ([]row, error) {
	var out []row
	for _, r := range s.rows[collection] {
		ok, err := matches(r, filters)
		if err != nil {
			return nil, &gateway.GatewayError{Status: 400, Message: err.Error(), Err: err}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Select(ctx context.Context, collection string, q gateway.Query) (rows []json.RawMessage, err error) {
	defer observe("select", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("select", collection); err != nil {
		return nil, err
	}

	matched, err := s.filtered(collection, q.Filters)
	if err != nil {
		return nil, err
	}
	if len(q.Order) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range q.Order {
				c := compare(matched[i][o.Column], matched[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	rows = make([]json.RawMessage, 0, len(matched))
	for _, r := range matched {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, &gateway.GatewayError{Status: 500, Message: err.Error(), Err: err}
		}
		rows = append(rows, data)
	}
	return rows, nil
}

func (s *Store) Insert(ctx context.Context, collection string, record any) (raw json.RawMessage, err error) {
	defer observe("insert", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Err: err}
	}

	normalized, err := normalize(record)
	if err != nil {
		return nil, &gateway.GatewayError{Status: 400, Message: err.Error(), Err: err}
	}
	r, ok := normalized.(map[string]any)
	if !ok {
		return nil, &gateway.GatewayError{Status: 400, Message: "record must be a JSON object"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("insert", collection); err != nil {
		return nil, err
	}
	if err := s.checkUnique(collection, r); err != nil {
		return nil, err
	}

	s.nextID[collection]++
	r["id"] = float64(s.nextID[collection])
	if _, ok := r["created_at"]; !ok && collection != gateway.Votes {
		r["created_at"] = s.clock().UTC().Format(time.RFC3339Nano)
	}
	s.rows[collection] = append(s.rows[collection], r)

	data, err := json.Marshal(r)
	if err != nil {
		return nil, &gateway.GatewayError{Status: 500, Message: err.Error(), Err: err}
	}
	return data, nil
}

func (s *Store) checkUnique(collection string, r row) error {
	cols := s.unique[collection]
	if len(cols) == 0 {
		return nil
	}
	for _, existing := range s.rows[collection] {
		same := true
		for _, c := range cols {
			if !equal(existing[c], r[c]) {
				same = false
				break
			}
		}
		if same {
			return &gateway.GatewayError{
				Status:  409,
				Code:    "23505",
				Message: fmt.Sprintf("duplicate key value violates unique constraint \"%s_%s_key\"", collection, strings.Join(cols, "_")),
			}
		}
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection string, filters []gateway.Filter, patch map[string]any) (err error) {
	defer observe("update", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return &gateway.GatewayError{Err: err}
	}

	normalized, err := normalize(patch)
	if err != nil {
		return &gateway.GatewayError{Status: 400, Message: err.Error(), Err: err}
	}
	values, _ := normalized.(map[string]any)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("update", collection); err != nil {
		return err
	}
	matched, err := s.filtered(collection, filters)
	if err != nil {
		return err
	}
	for _, r := range matched {
		for k, v := range values {
			r[k] = v
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, filters []gateway.Filter) (err error) {
	defer observe("delete", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return &gateway.GatewayError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("delete", collection); err != nil {
		return err
	}
	kept := s.rows[collection][:0]
	for _, r := range s.rows[collection] {
		ok, err := matches(r, filters)
		if err != nil {
			return &gateway.GatewayError{Status: 400, Message: err.Error(), Err: err}
		}
		if !ok {
			kept = append(kept, r)
		}
	}
	s.rows[collection] = kept
	return nil
}

func (s *Store) Count(ctx context.Context, collection string, filters []gateway.Filter) (n int, err error) {
	defer observe("count", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return 0, &gateway.GatewayError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("count", collection); err != nil {
		return 0, err
	}
	matched, err := s.filtered(collection, filters)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *Store) CountBy(ctx context.Context, collection, groupColumn string, filters []gateway.Filter) (counts map[int64]int, err error) {
	defer observe("count_by", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, &gateway.GatewayError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("count_by", collection); err != nil {
		return nil, err
	}
	matched, err := s.filtered(collection, filters)
	if err != nil {
		return nil, err
	}
	counts = make(map[int64]int)
	for _, r := range matched {
		if v, ok := r[groupColumn].(float64); ok {
			counts[int64(v)]++
		}
	}
	return counts, nil
}

// Seed 直接写入一条记录，保留其中的 id 和 created_at，供测试构造数据
func (s *Store) Seed(collection string, record any) error {
	normalized, err := normalize(record)
	if err != nil {
		return err
	}
	r, ok := normalized.(map[string]any)
	if !ok {
		return fmt.Errorf("seed %s: record must be a JSON object", collection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := r["id"].(float64); ok && int64(id) > s.nextID[collection] {
		s.nextID[collection] = int64(id)
	}
	s.rows[collection] = append(s.rows[collection], r)
	return nil
}

func (s *Store) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (err error) {
	defer observe("upload", time.Now(), &err)

	data, err := io.ReadAll(body)
	if err != nil {
		return &gateway.GatewayError{Status: 400, Message: err.Error(), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("upload", bucket); err != nil {
		return err
	}
	key := bucket + "/" + path
	if _, ok := s.objects[key]; ok {
		return &gateway.GatewayError{Status: 409, Message: "The resource already exists"}
	}
	s.objects[key] = data
	return nil
}

// Object 读取已上传的对象
func (s *Store) Object(bucket, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+path]
	return data, ok
}

func (s *Store) PublicURL(bucket, path string) string {
	return s.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + url.PathEscape(path)
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveGateway(backend, op, start, *err)
}
