package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
	"github.com/talkincode/toughpos/pkg/common"
	"gorm.io/gorm"
)

// schedulerInput is the body of create; every field is required except status, config and remark
type schedulerInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	TaskType string `json:"task_type" validate:"required,oneof=low_stock_check catalog_resync"`
	Interval int    `json:"interval" validate:"required,min=10"`
	Status   string `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Config   string `json:"config" validate:"omitempty,max=2000"`
	Remark   string `json:"remark" validate:"omitempty,max=500"`
}

// schedulerPatch is the body of update; zero fields are left unchanged
type schedulerPatch struct {
	Name     string `json:"name" validate:"omitempty,max=100"`
	TaskType string `json:"task_type" validate:"omitempty,oneof=low_stock_check catalog_resync"`
	Interval int    `json:"interval" validate:"omitempty,min=10"`
	Status   string `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Config   string `json:"config" validate:"omitempty,max=2000"`
	Remark   string `json:"remark" validate:"omitempty,max=500"`
}

func (p schedulerPatch) columns(now time.Time) map[string]interface{} {
	cols := map[string]interface{}{}
	set := func(col, val string) {
		if val != "" {
			cols[col] = val
		}
	}
	set("name", p.Name)
	set("task_type", p.TaskType)
	set("status", p.Status)
	set("config", p.Config)
	set("remark", p.Remark)
	if p.Interval > 0 {
		cols["interval"] = p.Interval
		cols["next_run_at"] = now.Add(time.Duration(p.Interval) * time.Second)
	}
	return cols
}

var schedulerSorts = map[string]bool{
	"id": true, "name": true, "task_type": true, "status": true, "last_run_at": true, "next_run_at": true,
}

func registerSchedulerRoutes() {
	webserver.ApiGET("/system/schedulers", listSchedulers)
	webserver.ApiGET("/system/schedulers/:id", getScheduler)
	webserver.ApiPOST("/system/schedulers", createScheduler)
	webserver.ApiPUT("/system/schedulers/:id", updateScheduler)
	webserver.ApiDELETE("/system/schedulers/:id", deleteScheduler)
	webserver.ApiPOST("/system/schedulers/:id/run", runScheduler)
}

// loadScheduler resolves :id or writes the 400/404 response itself
func loadScheduler(c echo.Context) (*domain.SysScheduler, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid scheduler ID", nil)
	}
	var sched domain.SysScheduler
	if err := GetDB(c).First(&sched, id).Error; err != nil {
		return nil, fail(c, http.StatusNotFound, "SCHEDULER_NOT_FOUND", "Scheduler not found", nil)
	}
	return &sched, nil
}

func schedulerNameTaken(c echo.Context, name string, exceptID int64) bool {
	var count int64
	GetDB(c).Model(&domain.SysScheduler{}).Where("name = ? AND id <> ?", name, exceptID).Count(&count)
	return count > 0
}

// listSchedulers filters by name (substring), status and task_type
func listSchedulers(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.SysScheduler{})
	if name := strings.TrimSpace(c.QueryParam("name")); name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	for _, col := range []string{"status", "task_type"} {
		if v := strings.TrimSpace(c.QueryParam(col)); v != "" {
			query = query.Where(col+" = ?", v)
		}
	}

	sortField := c.QueryParam("sort")
	if !schedulerSorts[sortField] {
		sortField = "id"
	}
	order := "DESC"
	if strings.EqualFold(c.QueryParam("order"), "asc") {
		order = "ASC"
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query schedulers", err.Error())
	}
	var rows []domain.SysScheduler
	err := query.Order(sortField + " " + order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query schedulers", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func getScheduler(c echo.Context) error {
	sched, err := loadScheduler(c)
	if sched == nil {
		return err
	}
	return ok(c, sched)
}

func createScheduler(c echo.Context) error {
	var in schedulerInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&in); err != nil {
		return handleValidationError(c, err)
	}
	if schedulerNameTaken(c, in.Name, 0) {
		return fail(c, http.StatusConflict, "NAME_EXISTS", "Scheduler name already exists", nil)
	}

	sched := domain.SysScheduler{
		ID:        common.UUIDint64(),
		Name:      in.Name,
		TaskType:  in.TaskType,
		Interval:  in.Interval,
		Status:    common.If(in.Status == "", common.ENABLED, in.Status),
		Config:    in.Config,
		Remark:    in.Remark,
		NextRunAt: time.Now().Add(time.Duration(in.Interval) * time.Second),
	}
	if err := GetDB(c).Create(&sched).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create scheduler", err.Error())
	}
	oprLog(c, "create_scheduler", "created scheduler "+sched.Name)
	return c.JSON(http.StatusCreated, Response{Data: sched})
}

func updateScheduler(c echo.Context) error {
	sched, err := loadScheduler(c)
	if sched == nil {
		return err
	}
	var patch schedulerPatch
	if err := c.Bind(&patch); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&patch); err != nil {
		return handleValidationError(c, err)
	}
	if patch.Name != "" && patch.Name != sched.Name && schedulerNameTaken(c, patch.Name, sched.ID) {
		return fail(c, http.StatusConflict, "NAME_EXISTS", "Scheduler name already exists", nil)
	}

	if cols := patch.columns(time.Now()); len(cols) > 0 {
		if err := GetDB(c).Model(sched).Updates(cols).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update scheduler", err.Error())
		}
	}
	if err := GetDB(c).First(sched, sched.ID).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to reload scheduler", err.Error())
	}
	return ok(c, sched)
}

func deleteScheduler(c echo.Context) error {
	sched, err := loadScheduler(c)
	if sched == nil {
		return err
	}
	if err := GetDB(c).Delete(sched).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete scheduler", err.Error())
	}
	oprLog(c, "delete_scheduler", "deleted scheduler "+sched.Name)
	return c.NoContent(http.StatusNoContent)
}

// runScheduler executes the task now; the outcome is recorded on the scheduler row
func runScheduler(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid scheduler ID", nil)
	}
	err = GetAppContext(c).RunSchedulerNow(id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fail(c, http.StatusNotFound, "SCHEDULER_NOT_FOUND", "Scheduler not found", nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "RUN_FAILED", "Failed to run scheduler", err.Error())
	}
	oprLog(c, "run_scheduler", "triggered scheduler "+c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
