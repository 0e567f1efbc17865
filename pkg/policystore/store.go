// Package policystore is a database-backed implementation of
// internal/sandbox.PolicySource: policy sets and their path rules live in
// SQLite (default) or PostgreSQL, reachable through a plain GORM store in
// front of either engine, the same dual-backend shape as the teacher's
// control plane store.
package policystore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	ErrPolicySetNotFound = errors.New("policy set not found")
	ErrDuplicatePolicySet = errors.New("policy set already exists")
)

// Store is a GORM-backed table of policy sets and path rules. Rule
// lookups are cached in memory, keyed by policy set ID, since C5's
// sandbox backend consults them on every OPEN/REMOVE/RENAME. The cache is
// invalidated on local writes (AddRule/RemoveRule/ReplaceRules) and, for
// SQLite, on any write to the backing file observed by fsnotify, so an
// operator editing the database with an external tool still takes effect
// without a restart.
type Store struct {
	db     *gorm.DB
	config *Config

	watcher *fsnotify.Watcher

	cacheMu   sync.RWMutex
	ruleCache map[string][]PathRuleModel
}

// New opens the configured database and brings its schema up to date.
//
// SQLite uses gorm.AutoMigrate directly, same as the teacher's control
// plane store: golang-migrate has no pure-Go SQLite driver compatible with
// glebarez/sqlite's modernc.org/sqlite backend, and introducing the
// cgo-based mattn/go-sqlite3 driver just for migrations would split the
// process between two different SQLite drivers talking to the same file.
// PostgreSQL runs the embedded golang-migrate migrations instead, giving
// that path an explicit, versioned, reversible schema history.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy store configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create policy store directory: %w", err)
		}
		dsn := cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)
	case DatabaseTypePostgres:
		dialector = gormpostgres.Open(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open policy store database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying policy store connection: %w", err)
	}

	switch cfg.Type {
	case DatabaseTypeSQLite:
		if err := db.AutoMigrate(AllModels()...); err != nil {
			return nil, fmt.Errorf("migrate policy store schema: %w", err)
		}
	case DatabaseTypePostgres:
		if err := runPostgresMigrations(sqlDB); err != nil {
			return nil, fmt.Errorf("migrate policy store schema: %w", err)
		}
	}

	store := &Store{db: db, config: cfg, ruleCache: make(map[string][]PathRuleModel)}
	if cfg.Type == DatabaseTypeSQLite {
		if err := store.startWatcher(); err != nil {
			slog.Error("policystore: failed to watch database file for external changes", "path", cfg.SQLite.Path, "error", err)
		}
	}
	return store, nil
}

// startWatcher watches the directory holding the SQLite file for writes
// made outside this process (an operator editing the database directly,
// or a second semihostd instance sharing the file) and drops the rule
// cache whenever one is observed, the same way dittofs watches its
// config file for external edits. The directory, not the file, is
// watched because WAL mode writes land in a sibling "-wal" file that
// only gets merged back into the main file on checkpoint.
func (s *Store) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy store file watcher: %w", err)
	}
	dir := filepath.Dir(s.config.SQLite.Path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch policy store directory %q: %w", dir, err)
	}
	s.watcher = watcher
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	base := filepath.Base(s.config.SQLite.Path)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}
			slog.Debug("policystore: database file changed, reloading path rules", "path", event.Name)
			s.invalidateCache()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("policystore: file watcher error", "error", err)
		}
	}
}

func (s *Store) invalidateCache() {
	s.cacheMu.Lock()
	s.ruleCache = make(map[string][]PathRuleModel)
	s.cacheMu.Unlock()
}

func runPostgresMigrations(sqlDB *sql.DB) error {
	driver, err := pgmigrate.WithInstance(sqlDB, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close releases the underlying connection pool and stops the file
// watcher, if one is running.
func (s *Store) Close() error {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreatePolicySet(ctx context.Context, name string) (*PolicySetModel, error) {
	set := &PolicySetModel{ID: uuid.New().String(), Name: name}
	if err := s.db.WithContext(ctx).Create(set).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicatePolicySet
		}
		return nil, err
	}
	return set, nil
}

func (s *Store) GetPolicySet(ctx context.Context, name string) (*PolicySetModel, error) {
	var set PolicySetModel
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&set).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPolicySetNotFound
		}
		return nil, err
	}
	return &set, nil
}

func (s *Store) AddRule(ctx context.Context, policySetID, prefix string, allowWrite bool) error {
	rule := &PathRuleModel{PolicySetID: policySetID, Prefix: prefix, AllowWrite: allowWrite}
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return err
	}
	s.invalidateCache()
	return nil
}

func (s *Store) RemoveRule(ctx context.Context, ruleID uint) error {
	result := s.db.WithContext(ctx).Delete(&PathRuleModel{}, ruleID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("path rule %d not found", ruleID)
	}
	s.invalidateCache()
	return nil
}

func (s *Store) ListRules(ctx context.Context, policySetID string) ([]PathRuleModel, error) {
	var rules []PathRuleModel
	if err := s.db.WithContext(ctx).
		Where("policy_set_id = ?", policySetID).
		Order("id asc").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// CachedRules returns policySetID's rules, querying the database only on
// a cache miss (first lookup, or after AddRule/RemoveRule/ReplaceRules or
// an external file change invalidate the cache).
func (s *Store) CachedRules(ctx context.Context, policySetID string) ([]PathRuleModel, error) {
	s.cacheMu.RLock()
	rules, ok := s.ruleCache[policySetID]
	s.cacheMu.RUnlock()
	if ok {
		return rules, nil
	}

	rules, err := s.ListRules(ctx, policySetID)
	if err != nil {
		return nil, err
	}
	s.cacheMu.Lock()
	s.ruleCache[policySetID] = rules
	s.cacheMu.Unlock()
	return rules, nil
}

// ReplaceRules atomically swaps every rule under policySetID for rules,
// the operation PUT /policy needs: an operator submits the complete
// desired rule list and the store reconciles it in one transaction
// rather than requiring a diff against the existing rows.
func (s *Store) ReplaceRules(ctx context.Context, policySetID string, rules []PathRuleModel) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("policy_set_id = ?", policySetID).Delete(&PathRuleModel{}).Error; err != nil {
			return err
		}
		for i := range rules {
			rules[i].ID = 0
			rules[i].PolicySetID = policySetID
			if err := tx.Create(&rules[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateCache()
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE constraint failed") || strings.Contains(s, "duplicate key value violates unique constraint")
}
