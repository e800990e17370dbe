package app

import (
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/talkincode/toughpos/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigManager caches the sys_config rows as category -> name -> value
type ConfigManager struct {
	db     *gorm.DB
	mu     sync.RWMutex
	values map[string]map[string]string
}

func NewConfigManager(a DBProvider) *ConfigManager {
	m := &ConfigManager{db: a.DB(), values: make(map[string]map[string]string)}
	m.Reload()
	return m
}

// Reload re-reads every row from the database
func (m *ConfigManager) Reload() {
	var rows []domain.SysConfig
	if err := m.db.Find(&rows).Error; err != nil {
		zap.L().Error("load sys_config error", zap.Error(err))
		return
	}
	values := make(map[string]map[string]string)
	for _, row := range rows {
		if values[row.Type] == nil {
			values[row.Type] = make(map[string]string)
		}
		values[row.Type][row.Name] = row.Value
	}
	m.mu.Lock()
	m.values = values
	m.mu.Unlock()
}

func (m *ConfigManager) GetString(category, name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[category][name]
}

func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(strings.TrimSpace(m.GetString(category, name)))
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(strings.TrimSpace(m.GetString(category, name)))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(strings.TrimSpace(m.GetString(category, name)))
}

// Category returns a copy of every value of category
func (m *ConfigManager) Category(category string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string, len(m.values[category]))
	for k, v := range m.values[category] {
		result[k] = v
	}
	return result
}

// Decode fills out from the values of category, converting strings as needed
func (m *ConfigManager) Decode(category string, out interface{}) error {
	return mapstructure.WeakDecode(m.Category(category), out)
}

// Set persists one value and updates the cache
func (m *ConfigManager) Set(category, name, value string) error {
	result := m.db.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", category, name).
		Updates(map[string]interface{}{"value": value, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if err := m.db.Create(&domain.SysConfig{Type: category, Name: name, Value: value}).Error; err != nil {
			return err
		}
	}
	m.mu.Lock()
	if m.values[category] == nil {
		m.values[category] = make(map[string]string)
	}
	m.values[category][name] = value
	m.mu.Unlock()
	return nil
}

// splitKey splits "category.name"; a key without a dot falls into "system"
func splitKey(key string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return "system", key
	}
	return parts[0], parts[1]
}
