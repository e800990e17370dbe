package app

import (
	"context"
	"os"
	"path"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/events"
	"github.com/talkincode/toughpos/internal/mailer"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/storage"
	"github.com/talkincode/toughpos/pkg/common"
	"github.com/talkincode/toughpos/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	sched         *cron.Cron
	configManager *ConfigManager

	bus      *events.Bus
	objects  *storage.ObjectStore
	feed     *pos.Feed
	store    *pos.Store
	sessions *auth.Sessions
	authn    auth.Provider
	mailer   *mailer.Mailer

	ctx    context.Context
	cancel context.CancelFunc
}

// Ensure Application implements all interfaces
var (
	_ DBProvider            = (*Application)(nil)
	_ ConfigProvider        = (*Application)(nil)
	_ SettingsProvider      = (*Application)(nil)
	_ SchedulerProvider     = (*Application)(nil)
	_ ConfigManagerProvider = (*Application)(nil)
	_ POSProvider           = (*Application)(nil)
	_ AuthProvider          = (*Application)(nil)
	_ AppContext            = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{appConfig: appConfig, ctx: ctx, cancel: cancel}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

func initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

func (a *Application) Init(cfg *config.AppConfig) error {
	initLogger(cfg)

	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Errorf("timezone config error: %v", err)
	} else {
		time.Local = loc
	}

	if err := os.MkdirAll(cfg.GetDataDir(), 0o755); err != nil {
		return err
	}

	// Initialize metrics with workdir convention
	if err := metrics.InitMetrics(cfg.System.Workdir); err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB, err = getDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return err
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	// Ensure database schema is migrated before loading configs
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.Seed()
	a.configManager = NewConfigManager(a)

	if err := a.initServices(); err != nil {
		return err
	}

	a.initJob()
	return nil
}

// initServices builds the change bus, object storage, POS store, sessions and mailer
func (a *Application) initServices() error {
	cfg := a.appConfig
	a.bus = events.NewBus()

	objects, err := storage.Open(path.Join(cfg.GetDataDir(), "objects.db"))
	if err != nil {
		return err
	}
	a.objects = objects

	a.feed = pos.NewFeed(200, pos.LogNotifier{})
	a.store = pos.NewStore(pos.NewGormRepository(a.gormDB, a.bus), pos.Options{
		TaxRate:  cfg.Pos.TaxRate,
		Bus:      a.bus,
		Notifier: a.feed,
		Objects:  a.objects,
	})
	if err := a.store.Start(a.ctx); err != nil {
		return err
	}

	a.sessions = auth.NewSessions(cfg.Web.Secret, cfg.TokenTTL(), a.bus)
	a.authn = auth.NewProvider(cfg.Auth, a.gormDB)

	workers := a.configManager.GetInt("scheduler", "max_workers")
	a.mailer, err = mailer.New(cfg.Smtp, workers)
	return err
}

// Seed creates the default operator, settings, schedulers and, when enabled,
// the demo catalog. Existing rows are left alone.
func (a *Application) Seed() {
	a.checkSuper()
	a.checkSettings()
	a.checkSchedulers()
	if a.appConfig.Pos.DemoData {
		a.checkDemoCatalog()
	}
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEBUG_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
			return err
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
			return err
		}
	}
	return nil
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) POS() *pos.Store { return a.store }
func (a *Application) Notifications() *pos.Feed { return a.feed }
func (a *Application) Bus() *events.Bus { return a.bus }
func (a *Application) Objects() *storage.ObjectStore { return a.objects }
func (a *Application) Mailer() *mailer.Mailer { return a.mailer }
func (a *Application) Sessions() *auth.Sessions { return a.sessions }
func (a *Application) Authenticator() auth.Provider { return a.authn }

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(category, key string) string {
	return a.configManager.GetString(category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(category, key string) int64 {
	return a.configManager.GetInt64(category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(category, key string) bool {
	return a.configManager.GetBool(category, key)
}

// SaveSettings saves "category.name" keyed values
func (a *Application) SaveSettings(settings map[string]interface{}) error {
	for key, value := range settings {
		category, name := splitKey(key)
		if err := a.configManager.Set(category, name, cast.ToString(value)); err != nil {
			return err
		}
	}
	return nil
}

// AddOprLog records an operator action
func (a *Application) AddOprLog(operator, ip, action, desc string) {
	err := a.gormDB.Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   operator,
		OprIp:     ip,
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}).Error
	if err != nil {
		zap.L().Error("add operator log error", zap.Error(err))
	}
}

// Start scheduler job runner
func (a *Application) StartBackgroundJobs(ctx context.Context) {
	a.StartSchedulerService(ctx)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.store != nil {
		a.store.Stop()
	}
	if a.mailer != nil {
		a.mailer.Release()
	}
	if a.objects != nil {
		_ = a.objects.Close()
	}
	_ = metrics.Close()
	_ = zap.L().Sync()
}
