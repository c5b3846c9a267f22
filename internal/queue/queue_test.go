package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bazaar-next/internal/config"
)

func TestFanoutTaskPayload(t *testing.T) {
	task, err := NewFanoutDispatchTask(FanoutDispatchPayload{OrderNumber: "ORD000042", Trigger: "gateway_confirmed"})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if task.Type() != TaskFanoutDispatch {
		t.Fatalf("unexpected task type %s", task.Type())
	}
	payload, err := ParseFanoutDispatchPayload([]byte(`{"order_number":" ORD000042 ","trigger":"manual"}`))
	if err != nil || payload.OrderNumber != "ORD000042" || payload.Trigger != "manual" {
		t.Fatalf("unexpected payload %+v %v", payload, err)
	}
	if _, err := ParseFanoutDispatchPayload([]byte("{")); err == nil {
		t.Fatalf("malformed payload should fail")
	}
	if fanoutTaskID("ORD000042") != "fanout:ORD000042" {
		t.Fatalf("task id should derive from order number")
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client should be disabled")
	}
	if err := client.EnqueueFanoutDispatch(context.Background(), FanoutDispatchPayload{}); err != nil {
		t.Fatalf("disabled enqueue should be a no-op: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("disabled close failed: %v", err)
	}
	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatalf("nil client should be disabled")
	}
}

func TestEnqueueRejectsEmptyOrderNumber(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	defer client.Close()
	if err := client.EnqueueFanoutDispatch(context.Background(), FanoutDispatchPayload{OrderNumber: "  "}); !errors.Is(err, ErrEmptyOrderNumber) {
		t.Fatalf("expected empty order number error, got %v", err)
	}
}

func TestRetryDelayBacksOffWithCap(t *testing.T) {
	cases := map[int]time.Duration{0: 2 * time.Second, 1: 4 * time.Second, 4: 32 * time.Second, 9: maxRetryBackoff, 40: maxRetryBackoff}
	for retried, want := range cases {
		if got := RetryDelay(retried, nil, nil); got != want {
			t.Fatalf("RetryDelay(%d) = %s, want %s", retried, got, want)
		}
	}
}

func TestServerConfigAndRedisOpt(t *testing.T) {
	cfg := &config.QueueConfig{Host: "redis", Port: 6380, DB: 2, Concurrency: 4, Queues: map[string]int{"critical": 9}}
	opt := RedisOpt(cfg)
	if opt.Addr != "redis:6380" || opt.DB != 2 {
		t.Fatalf("unexpected redis opt %+v", opt)
	}
	if RedisOpt(nil).Addr != "127.0.0.1:6379" {
		t.Fatalf("nil config should use local default")
	}
	server := ServerConfig(cfg)
	if server.Concurrency != 4 || server.Queues["critical"] != 9 || server.RetryDelayFunc == nil || server.ErrorHandler == nil {
		t.Fatalf("unexpected server config %+v", server)
	}
	if ServerConfig(nil).Queues[CriticalQueue] != 5 {
		t.Fatalf("default weights should favour critical queue")
	}
}
