package app

import (
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed config_schemas.json
var configSchemasData []byte

// ConfigSchema describes one sys_config entry and its default
type ConfigSchema struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

type ConfigSchemasJSON struct {
	Schemas []ConfigSchema `json:"schemas"`
}

const (
	superUsername   = "admin"
	defaultPassword = "toughpos"
)

func (a *Application) checkSuper() {
	hashedPassword, err := common.HashPassword(defaultPassword)
	if err != nil {
		zap.L().Error("failed to hash default password", zap.Error(err))
		return
	}

	var operator domain.SysOpr
	err = a.gormDB.Where("username = ?", superUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Mobile:    "0000",
			Email:     common.NA,
			Username:  superUsername,
			Password:  hashedPassword,
			Level:     "super",
			Source:    "local",
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetPassword := strings.TrimSpace(operator.Password) == ""
	resetLevel := !strings.EqualFold(operator.Level, "super")
	resetStatus := !strings.EqualFold(operator.Status, common.ENABLED)

	if !resetPassword && !resetLevel && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetPassword {
		updates["password"] = hashedPassword
	}
	if resetLevel {
		updates["level"] = "super"
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}

	if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}

	zap.L().Warn("repaired default super admin account",
		zap.String("username", superUsername),
		zap.Bool("passwordReset", resetPassword),
		zap.Bool("levelReset", resetLevel),
		zap.Bool("statusEnabled", resetStatus))
}

func (a *Application) checkSettings() {
	var schemasData ConfigSchemasJSON
	if err := json.Unmarshal(configSchemasData, &schemasData); err != nil {
		zap.L().Error("failed to load config schemas from JSON", zap.Error(err))
		return
	}

	for sortid, schema := range schemasData.Schemas {
		// "category.name"
		parts := strings.SplitN(schema.Key, ".", 2)
		if len(parts) != 2 {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}
		category, name := parts[0], parts[1]

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

// checkSchedulers initializes default scheduled tasks
func (a *Application) checkSchedulers() {
	defaultSchedulers := []domain.SysScheduler{
		{
			Name:     "Low Stock Check",
			TaskType: TaskLowStockCheck,
			Interval: 3600, // 1 hour
			Status:   common.ENABLED,
			Remark:   "Reports products at or below the low stock threshold",
		},
		{
			Name:     "Catalog Resync",
			TaskType: TaskCatalogResync,
			Interval: 300, // 5 minutes
			Status:   common.ENABLED,
			Remark:   "Re-reads the catalog to pick up writes from other processes",
		},
	}

	for _, sched := range defaultSchedulers {
		var count int64
		a.gormDB.Model(&domain.SysScheduler{}).
			Where("task_type = ?", sched.TaskType).
			Count(&count)

		if count == 0 {
			sched.ID = common.UUIDint64()
			sched.NextRunAt = time.Now().Add(time.Duration(sched.Interval) * time.Second)
			if err := a.gormDB.Create(&sched).Error; err != nil {
				zap.L().Error("failed to create default scheduler",
					zap.String("name", sched.Name),
					zap.Error(err))
			} else {
				zap.L().Info("initialized default scheduler",
					zap.String("name", sched.Name),
					zap.String("task_type", sched.TaskType))
			}
		}
	}
}

// checkDemoCatalog seeds a small catalog into an empty database
func (a *Application) checkDemoCatalog() {
	var count int64
	a.gormDB.Model(&domain.Product{}).Count(&count)
	if count > 0 {
		return
	}

	now := time.Now()
	categories := []domain.Category{
		{ID: "minuman", Name: "Minuman", CreatedAt: now, UpdatedAt: now},
		{ID: "makanan", Name: "Makanan", CreatedAt: now, UpdatedAt: now},
	}
	products := []domain.Product{
		{ID: "8991001", Name: "Kopi Susu", Price: 18000, PurchasePrice: 9000, Stock: 40, CategoryID: "minuman"},
		{ID: "8991002", Name: "Teh Botol", Price: 5000, PurchasePrice: 3500, Stock: 120, CategoryID: "minuman"},
		{ID: "8991003", Name: "Air Mineral 600ml", Price: 3500, PurchasePrice: 2000, Stock: 200, CategoryID: "minuman"},
		{ID: "8992001", Name: "Roti Cokelat", Price: 12000, PurchasePrice: 7000, Stock: 25, CategoryID: "makanan"},
		{ID: "8992002", Name: "Keripik Singkong", Price: 8500, PurchasePrice: 5000, Stock: 3, CategoryID: "makanan"},
	}
	for i := range categories {
		if err := a.gormDB.Create(&categories[i]).Error; err != nil {
			zap.L().Error("failed to create demo category", zap.String("id", categories[i].ID), zap.Error(err))
		}
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := a.gormDB.Create(&p).Error; err != nil {
			zap.L().Error("failed to create demo product", zap.String("id", p.ID), zap.Error(err))
		} else {
			zap.L().Info("initialized demo product", zap.String("id", p.ID), zap.String("name", p.Name))
		}
	}
}
