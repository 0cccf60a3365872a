// Package store persists gardens, systems and requests with gorm.
//
// The DSN picks the driver: "postgres://" and "postgresql://" open
// PostgreSQL, "mysql://" opens MySQL with the prefix stripped, and anything
// else is treated as a SQLite path or URI (":memory:" included).
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/gardenctl/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DefaultDSN keeps the store in process memory.
const DefaultDSN = ":memory:"

var (
	ErrDSNRequired     = errors.New("store: dsn required")
	ErrSystemNotFound  = errors.New("store: system not found")
	ErrRequestNotFound = errors.New("store: request not found")
	ErrGardenNotFound  = errors.New("store: garden not found")
)

// Store is the durable store for one garden.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, err
	}
	return New(db)
}

// OpenDB opens a gorm handle for dsn without migrating.
func OpenDB(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrDSNRequired
	}
	dialector, driver := dialectorFor(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Local systems name a garden row that may never exist.
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if driver == "sqlite" && strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// Every pooled connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	log.Debug().Str("driver", driver).Msg("store_open")
	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, string) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgres.Open(dsn), "postgres"
	case strings.HasPrefix(lower, "mysql://"):
		return mysql.Open(dsn[len("mysql://"):]), "mysql"
	default:
		return sqlite.Open(dsn), "sqlite"
	}
}

// New migrates db and wraps it.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&model.Garden{},
		&model.System{},
		&model.Instance{},
		&model.Request{},
	); err != nil {
		return nil, fmt.Errorf("store: auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) LocalSystems(ctx context.Context) ([]model.System, error) {
	var systems []model.System
	err := s.db.WithContext(ctx).
		Preload("Instances").
		Where("is_local = ?", true).
		Order("namespace, name, version").
		Find(&systems).Error
	return systems, err
}

// RemoteGardens returns every garden other than localName with its systems
// and their instances.
func (s *Store) RemoteGardens(ctx context.Context, localName string) ([]model.Garden, error) {
	var gardens []model.Garden
	err := s.db.WithContext(ctx).
		Preload("Systems.Instances").
		Where("name <> ?", localName).
		Order("name").
		Find(&gardens).Error
	return gardens, err
}

func (s *Store) ListGardens(ctx context.Context) ([]model.Garden, error) {
	var gardens []model.Garden
	err := s.db.WithContext(ctx).Preload("Systems.Instances").Order("name").Find(&gardens).Error
	return gardens, err
}

// GetGarden returns nil, nil when no garden is named name.
func (s *Store) GetGarden(ctx context.Context, name string) (*model.Garden, error) {
	var garden model.Garden
	err := s.db.WithContext(ctx).
		Preload("Systems.Instances").
		Where("name = ?", strings.TrimSpace(name)).
		First(&garden).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &garden, nil
}

// UpsertGarden inserts or replaces the garden row. Systems are left alone.
func (s *Store) UpsertGarden(ctx context.Context, garden *model.Garden) error {
	if garden == nil || strings.TrimSpace(garden.Name) == "" {
		return errors.New("store: garden name required")
	}
	return s.db.WithContext(ctx).
		Omit("Systems").
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(garden).Error
}

func (s *Store) DeleteGarden(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).Delete(&model.Garden{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrGardenNotFound, name)
	}
	return nil
}

func (s *Store) ListSystems(ctx context.Context) ([]model.System, error) {
	var systems []model.System
	err := s.db.WithContext(ctx).
		Preload("Instances").
		Order("namespace, name, version").
		Find(&systems).Error
	return systems, err
}

func (s *Store) GetSystem(ctx context.Context, id string) (*model.System, error) {
	var system model.System
	err := s.db.WithContext(ctx).Preload("Instances").Where("id = ?", strings.TrimSpace(id)).First(&system).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSystemNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &system, nil
}

// UpsertSystem stores system and replaces its instances. Missing ids are
// generated.
func (s *Store) UpsertSystem(ctx context.Context, system *model.System) error {
	if system == nil {
		return errors.New("store: nil system")
	}
	if strings.TrimSpace(system.ID) == "" {
		system.ID = uuid.NewString()
	}
	for i := range system.Instances {
		if strings.TrimSpace(system.Instances[i].ID) == "" {
			system.Instances[i].ID = uuid.NewString()
		}
		system.Instances[i].SystemID = system.ID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Instances").
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(system).Error; err != nil {
			return err
		}
		if err := tx.Where("system_id = ?", system.ID).Delete(&model.Instance{}).Error; err != nil {
			return err
		}
		if len(system.Instances) == 0 {
			return nil
		}
		return tx.Create(&system.Instances).Error
	})
}

// DeleteSystem removes the system and its instances.
func (s *Store) DeleteSystem(ctx context.Context, id string) (*model.System, error) {
	system, err := s.GetSystem(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("system_id = ?", system.ID).Delete(&model.Instance{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.System{}, "id = ?", system.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return system, nil
}

// Namespaces lists the distinct namespaces of every known system.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	var namespaces []string
	err := s.db.WithContext(ctx).
		Model(&model.System{}).
		Distinct("namespace").
		Order("namespace").
		Pluck("namespace", &namespaces).Error
	return namespaces, err
}

// GetRequest returns nil, nil when no request has id.
func (s *Store) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	var req model.Request
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) ListRequests(ctx context.Context) ([]model.Request, error) {
	var requests []model.Request
	err := s.db.WithContext(ctx).Order("created_at").Find(&requests).Error
	return requests, err
}

// CreateRequest inserts req and returns the stored copy. A request that
// arrives with an id, as forwarded requests do, keeps it.
func (s *Store) CreateRequest(ctx context.Context, req *model.Request) (*model.Request, error) {
	if req == nil {
		return nil, errors.New("store: nil request")
	}
	out := *req
	if strings.TrimSpace(out.ID) == "" {
		out.ID = uuid.NewString()
	}
	if out.Parent != nil && out.ParentID == "" {
		out.ParentID = out.Parent.ID
	}
	if out.Status == "" {
		out.Status = model.RequestStatusCreated
	}
	if err := s.db.WithContext(ctx).Create(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRequestStatus sets status, and output when non-empty.
func (s *Store) UpdateRequestStatus(ctx context.Context, id, status, output string) (*model.Request, error) {
	updates := map[string]any{"status": status}
	if output != "" {
		updates["output"] = output
	}
	res := s.db.WithContext(ctx).Model(&model.Request{}).Where("id = ?", strings.TrimSpace(id)).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return s.GetRequest(ctx, id)
}
