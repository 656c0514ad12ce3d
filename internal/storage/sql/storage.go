package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/storage"
)

// Supported database drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config selects the database driver and connection string
type Config struct {
	Driver string
	DSN    string
}

// Storage is a gorm-backed implementation of the storage interface
type Storage struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Open connects to the configured database and migrates the schema
func Open(cfg Config, logger *slog.Logger) (*Storage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == DriverMySQL {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		sqlDB.SetMaxOpenConns(1)
	}

	s, err := NewWithDB(db, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Info("database initialized", slog.String("driver", cfg.Driver))
	return s, nil
}

// NewWithDB wraps an open gorm connection and migrates the schema
func NewWithDB(db *gorm.DB, logger *slog.Logger) (*Storage, error) {
	if err := db.AutoMigrate(&rosterRecord{}, &playerRecord{}, &gearChoiceRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Storage{
		db:     db,
		logger: logger.With(slog.String("component", "sql-storage")),
	}, nil
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Roster operations

func (s *Storage) SaveRoster(ctx context.Context, roster *model.Roster) error {
	rec := toRosterRecord(roster)
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *Storage) GetRoster(ctx context.Context, slug model.RosterSlug) (*model.Roster, error) {
	var rec rosterRecord
	err := s.db.WithContext(ctx).Where("slug = ?", string(slug)).Take(&rec).Error
	if err != nil {
		return nil, notFound(err, model.ErrRosterNotFound)
	}
	return rec.toModel(), nil
}

func (s *Storage) RosterExists(ctx context.Context, slug model.RosterSlug) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&rosterRecord{}).Where("slug = ?", string(slug)).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	rec := toPlayerRecord(player)
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.PlayerID, patch storage.PlayerPatch) (*model.Player, error) {
	var rec playerRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&playerRecord{}).Where("id = ?", string(id)).Updates(playerColumns(patch)).Error
		if err != nil {
			return err
		}
		return tx.Where("id = ?", string(id)).Take(&rec).Error
	})
	if err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	p := rec.toModel()
	return &p, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var rec playerRecord
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&rec).Error
	if err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	p := rec.toModel()
	return &p, nil
}

func (s *Storage) ListPlayers(ctx context.Context, slug model.RosterSlug, active bool) ([]model.Player, error) {
	query := s.db.WithContext(ctx).Where("roster_slug = ?", string(slug))
	if active {
		query = query.Where("deleted_at IS NULL")
	} else {
		query = query.Where("deleted_at IS NOT NULL")
	}

	var recs []playerRecord
	if err := query.Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, err
	}

	players := make([]model.Player, len(recs))
	for i, rec := range recs {
		players[i] = rec.toModel()
	}
	return players, nil
}

// Gear choice operations

func (s *Storage) GetGearChoice(ctx context.Context, playerID model.PlayerID) (*model.GearChoice, error) {
	var rec gearChoiceRecord
	err := s.db.WithContext(ctx).Where("player_id = ?", string(playerID)).Take(&rec).Error
	if err != nil {
		return nil, notFound(err, model.ErrGearChoiceNotFound)
	}
	return rec.toModel(), nil
}

func (s *Storage) CreateGearChoiceIfAbsent(ctx context.Context, gear *model.GearChoice) (*model.GearChoice, error) {
	rec := toGearChoiceRecord(gear)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
	if err != nil {
		return nil, err
	}
	return s.GetGearChoice(ctx, gear.PlayerID)
}

// UpdateGearChoice upserts in one statement: a new row takes initial with
// the update applied, an existing row has only the update's columns set.
func (s *Storage) UpdateGearChoice(ctx context.Context, initial *model.GearChoice, update model.GearChoiceUpdate) (*model.GearChoice, error) {
	seeded := initial.Merge(update)
	rec := toGearChoiceRecord(&seeded)

	var stored gearChoiceRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns(gearColumns(update)),
		}).Create(&rec).Error
		if err != nil {
			return err
		}
		return tx.Where("player_id = ?", string(initial.PlayerID)).Take(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return stored.toModel(), nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
