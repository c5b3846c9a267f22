package admin

import (
	"strconv"
	"strings"
	"time"

	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

// getStaffActor 读取员工中间件写入的操作人
func getStaffActor(c *gin.Context) (service.StaffActor, bool) {
	value, exists := c.Get("staff_actor")
	if !exists {
		respondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return service.StaffActor{}, false
	}
	actor, ok := value.(service.StaffActor)
	if !ok {
		respondError(c, response.CodeInternal, "error.staff_id_type_invalid", nil)
		return service.StaffActor{}, false
	}
	return actor, true
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return 0, false
	}
	return uint(id), true
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
