// Package sqlstore serves the gateway contract from a SQL database through
// gorm, for self-hosted deployments that run without a hosted platform.
package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plaza/internal/gateway"
	"plaza/internal/metrics"
	"plaza/internal/models"
)

const backend = "sql"

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type entity struct {
	newOne   func() any
	newSlice func() any
}

// registry 集合名 -> 模型
var registry = map[string]entity{
	gateway.Posts: {
		newOne:   func() any { return &models.Post{} },
		newSlice: func() any { return &[]models.Post{} },
	},
	gateway.Comments: {
		newOne:   func() any { return &models.Comment{} },
		newSlice: func() any { return &[]models.Comment{} },
	},
	gateway.Votes: {
		newOne:   func() any { return &models.Vote{} },
		newSlice: func() any { return &[]models.Vote{} },
	},
	gateway.Communities: {
		newOne:   func() any { return &models.Community{} },
		newSlice: func() any { return &[]models.Community{} },
	},
}

type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

var (
	_ gateway.Records    = (*Store)(nil)
	_ gateway.Aggregator = (*Store)(nil)
)

// Open 连接数据库并完成迁移，"sqlite:" 前缀的 dsn 使用 sqlite，其余为 postgres
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=plaza port=5432 sslmode=disable"
	}
	dialector := postgres.Open(dsn)
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		dialector = sqlite.Open(path)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return New(db, logger)
}

// New 在已有连接上迁移表结构并写入初始社区
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, log: logger.Sugar().Named("gateway.sql")}

	if err := db.AutoMigrate(
		&models.Community{},
		&models.Post{},
		&models.Comment{},
		&models.Vote{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	s.log.Info("Database migration completed")

	s.seedCommunities()
	return s, nil
}

func (s *Store) seedCommunities() {
	var count int64
	s.db.Model(&models.Community{}).Count(&count)
	if count > 0 {
		return
	}

	communities := []models.Community{
		{Name: "General", Description: "Anything goes"},
		{Name: "Tech", Description: "Programming, gadgets and the web"},
		{Name: "Showcase", Description: "Share what you built"},
	}
	for _, c := range communities {
		if err := s.db.Create(&c).Error; err != nil {
			s.log.Warnf("Failed to create community %s: %v", c.Name, err)
		}
	}
	s.log.Info("Initial communities created")
}

func lookup(collection string) (entity, error) {
	e, ok := registry[collection]
	if !ok {
		return entity{}, &gateway.GatewayError{Status: 404, Message: fmt.Sprintf("relation %q does not exist", collection)}
	}
	return e, nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &gateway.GatewayError{Status: 500, Message: err.Error(), Err: err}
}

func applyFilters(q *gorm.DB, filters []gateway.Filter) (*gorm.DB, error) {
	for _, f := range filters {
		if !identifier.MatchString(f.Column) {
			return nil, &gateway.GatewayError{Status: 400, Message: fmt.Sprintf("invalid column %q", f.Column)}
		}
		q = q.Where(map[string]any{f.Column: f.Value})
	}
	return q, nil
}

func (s *Store) Select(ctx context.Context, collection string, query gateway.Query) (rows []json.RawMessage, err error) {
	defer observe("select", time.Now(), &err)

	e, err := lookup(collection)
	if err != nil {
		return nil, err
	}
	q, err := applyFilters(s.db.WithContext(ctx).Model(e.newOne()), query.Filters)
	if err != nil {
		return nil, err
	}
	for _, o := range query.Order {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: !o.Ascending})
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	out := e.newSlice()
	if err := q.Find(out).Error; err != nil {
		return nil, wrap(err)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, wrap(err)
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, wrap(err)
	}
	return rows, nil
}

func (s *Store) Insert(ctx context.Context, collection string, record any) (raw json.RawMessage, err error) {
	defer observe("insert", time.Now(), &err)

	e, err := lookup(collection)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, wrap(err)
	}
	obj := e.newOne()
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, &gateway.GatewayError{Status: 400, Message: err.Error(), Err: err}
	}
	if err := s.db.WithContext(ctx).Create(obj).Error; err != nil {
		return nil, wrap(err)
	}
	data, err = json.Marshal(obj)
	if err != nil {
		return nil, wrap(err)
	}
	return data, nil
}

func (s *Store) Update(ctx context.Context, collection string, filters []gateway.Filter, patch map[string]any) (err error) {
	defer observe("update", time.Now(), &err)

	e, err := lookup(collection)
	if err != nil {
		return err
	}
	q, err := applyFilters(s.db.WithContext(ctx).Model(e.newOne()), filters)
	if err != nil {
		return err
	}
	return wrap(q.Updates(patch).Error)
}

func (s *Store) Delete(ctx context.Context, collection string, filters []gateway.Filter) (err error) {
	defer observe("delete", time.Now(), &err)

	e, err := lookup(collection)
	if err != nil {
		return err
	}
	q, err := applyFilters(s.db.WithContext(ctx), filters)
	if err != nil {
		return err
	}
	return wrap(q.Delete(e.newOne()).Error)
}

func (s *Store) Count(ctx context.Context, collection string, filters []gateway.Filter) (n int, err error) {
	defer observe("count", time.Now(), &err)

	e, err := lookup(collection)
	if err != nil {
		return 0, err
	}
	q, err := applyFilters(s.db.WithContext(ctx).Model(e.newOne()), filters)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, wrap(err)
	}
	return int(count), nil
}

// CountBy 一次分组查询统计每个分组的行数
func (s *Store) CountBy(ctx context.Context, collection, groupColumn string, filters []gateway.Filter) (counts map[int64]int, err error) {
	defer observe("count_by", time.Now(), &err)

	e, err := lookup(collection)
	if err != nil {
		return nil, err
	}
	if !identifier.MatchString(groupColumn) {
		return nil, &gateway.GatewayError{Status: 400, Message: fmt.Sprintf("invalid column %q", groupColumn)}
	}
	q, err := applyFilters(s.db.WithContext(ctx).Model(e.newOne()), filters)
	if err != nil {
		return nil, err
	}

	type countResult struct {
		GroupID int64
		Count   int
	}
	var results []countResult
	err = q.Select(groupColumn + " AS group_id, COUNT(*) AS count").
		Group(groupColumn).
		Scan(&results).Error
	if err != nil {
		return nil, wrap(err)
	}

	counts = make(map[int64]int, len(results))
	for _, r := range results {
		counts[r.GroupID] = r.Count
	}
	return counts, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveGateway(backend, op, start, *err)
}
