package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON 自由结构的 JSON 列，用于订单快照与商品属性
type JSON map[string]interface{}

// GormDataType 通用类型名
func (JSON) GormDataType() string { return "json" }

// GormDBDataType postgres 用 jsonb，sqlite 以文本保存
func (JSON) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}

// Value 写库；nil 写 NULL
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	raw, err := json.Marshal(map[string]interface{}(j))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 读库，驱动可能返回 []byte 或 string；NULL 与空串读为空对象
func (j *JSON) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	decoded := JSON{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
	}
	*j = decoded
	return nil
}
