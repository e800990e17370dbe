package app

import (
	"github.com/robfig/cron/v3"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/events"
	"github.com/talkincode/toughpos/internal/mailer"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/storage"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides system settings access
type SettingsProvider interface {
	GetSettingsStringValue(category, key string) string
	GetSettingsInt64Value(category, key string) int64
	GetSettingsBoolValue(category, key string) bool
	SaveSettings(settings map[string]interface{}) error
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// POSProvider provides the point-of-sale state and its collaborators
type POSProvider interface {
	POS() *pos.Store
	Notifications() *pos.Feed
	Bus() *events.Bus
	Objects() *storage.ObjectStore
	Mailer() *mailer.Mailer
}

// AuthProvider provides operator authentication
type AuthProvider interface {
	Sessions() *auth.Sessions
	Authenticator() auth.Provider
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider
	ConfigManagerProvider
	POSProvider
	AuthProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	// RunSchedulerNow triggers a scheduler execution immediately by ID
	RunSchedulerNow(id int64) error
	// AddOprLog records an operator action
	AddOprLog(operator, ip, action, desc string)
}
