package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"github.com/talkincode/toughpos/pkg/money"
	"go.uber.org/zap"
)

// Scheduler task types
const (
	TaskLowStockCheck = "low_stock_check"
	TaskCatalogResync = "catalog_resync"
)

var TaskTypes = []string{TaskLowStockCheck, TaskCatalogResync}

// StartSchedulerService runs enabled schedulers periodically until ctx is done
func (a *Application) StartSchedulerService(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.runSchedulers()
			}
		}
	}()
}

// runSchedulers executes enabled schedulers that are due
func (a *Application) runSchedulers() {
	var schedulers []domain.SysScheduler
	a.gormDB.Where("status = ?", common.ENABLED).Find(&schedulers)

	maxWorkers := int(a.GetSettingsInt64Value("scheduler", "max_workers"))
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	now := time.Now()
	for _, sched := range schedulers {
		if !sched.NextRunAt.IsZero() && now.Before(sched.NextRunAt) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(s domain.SysScheduler) {
			defer wg.Done()
			defer func() { <-sem }()
			a.runScheduler(&s)
		}(sched)
	}
	wg.Wait()
}

// runScheduler executes one task and records its outcome and next run
func (a *Application) runScheduler(sched *domain.SysScheduler) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	var (
		message string
		err     error
	)
	switch sched.TaskType {
	case TaskLowStockCheck:
		message, err = a.runLowStockCheck()
	case TaskCatalogResync:
		message, err = a.runCatalogResync()
	default:
		err = fmt.Errorf("unsupported task type %s", sched.TaskType)
	}

	result := "success"
	if err != nil {
		result = "failed"
		message = err.Error()
		zap.L().Error("scheduler failed", zap.Int64("scheduler_id", sched.ID),
			zap.String("task_type", sched.TaskType), zap.Error(err))
	}

	now := time.Now()
	a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
		"last_run_at":  now,
		"next_run_at":  now.Add(time.Duration(sched.Interval) * time.Second),
		"last_result":  result,
		"last_message": message,
	})
}

// RunSchedulerNow triggers a scheduler execution immediately by ID
func (a *Application) RunSchedulerNow(id int64) error {
	var sched domain.SysScheduler
	if err := a.gormDB.First(&sched, id).Error; err != nil {
		return err
	}
	a.runScheduler(&sched)
	return nil
}

// runLowStockCheck warns about products at or below the configured threshold
// and mails the list to the alert address when SMTP is configured
func (a *Application) runLowStockCheck() (string, error) {
	threshold := a.GetSettingsInt64Value("pos", "low_stock_threshold")
	if threshold <= 0 {
		threshold = 5
	}
	low := a.store.CheckLowStock(threshold)
	if len(low) == 0 {
		return "no product below threshold", nil
	}

	if a.mailer.Enabled() {
		var body strings.Builder
		for _, p := range low {
			fmt.Fprintf(&body, "%s  %s  stok %d  harga %s\n", p.ID, p.Name, p.Stock, money.FormatRupiah(p.Price))
		}
		subject := fmt.Sprintf("[%s] %d produk stok menipis", a.store.Settings().StoreName, len(low))
		if err := a.mailer.Alert(subject, body.String()); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%d product(s) at or below %d", len(low), threshold), nil
}

func (a *Application) runCatalogResync() (string, error) {
	if err := a.store.Refresh(a.ctx); err != nil {
		return "", err
	}
	snap := a.store.Snapshot()
	return fmt.Sprintf("%d products, %d categories, %d transactions", len(snap.Products), len(snap.Categories), len(snap.Transactions)), nil
}
