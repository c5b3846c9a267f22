package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

var uniqueViolationMarkers = []string{
	"unique constraint failed", // sqlite
	"duplicate key value",      // postgres
	"sqlstate 23505",
	"(2067)", // sqlite extended code SQLITE_CONSTRAINT_UNIQUE
	"(1555)", // SQLITE_CONSTRAINT_PRIMARYKEY
}

// IsUniqueViolation 判断是否为唯一约束冲突，兼容未开启 TranslateError 的连接
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range uniqueViolationMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
