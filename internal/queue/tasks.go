package queue

import (
	"encoding/json"
	"strings"

	"github.com/bazaar-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskFanoutDispatch 订单结算后按供应商拆单任务
	TaskFanoutDispatch = constants.TaskFanoutDispatch
)

// FanoutDispatchPayload 拆单任务载荷
type FanoutDispatchPayload struct {
	OrderNumber string `json:"order_number"`
	Trigger     string `json:"trigger,omitempty"` // cod_begin / gateway_confirmed / manual
}

// NewFanoutDispatchTask 创建拆单任务
func NewFanoutDispatchTask(payload FanoutDispatchPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFanoutDispatch, body), nil
}

// ParseFanoutDispatchPayload 解析拆单任务载荷
func ParseFanoutDispatchPayload(body []byte) (FanoutDispatchPayload, error) {
	var payload FanoutDispatchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, err
	}
	payload.OrderNumber = strings.TrimSpace(payload.OrderNumber)
	return payload, nil
}

// fanoutTaskID 同一订单在队列中只保留一个待执行任务
func fanoutTaskID(orderNumber string) string {
	return "fanout:" + orderNumber
}
