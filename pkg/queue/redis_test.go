package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"StockCast/pkg/logger"

	"github.com/go-redis/redismock/v9"
)

type stubJob struct{ handled int }

func (s *stubJob) Name() string { return "stub" }
func (s *stubJob) Type() string { return "test.job" }

func (s *stubJob) Handle(_ context.Context, _ interface{}) error {
	s.handled++
	return nil
}

func newTestQueue(t *testing.T, mode QueueMode) (*RedisQueue, redismock.ClientMock) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cli, mock := redismock.NewClientMock()
	cfg := &QueueConfig{Workers: 1, RetryLimit: 2, RetryDelay: time.Second}
	return NewRedisQueue(l, cfg, cli, mode), mock
}

func TestEnqueueBeforeStart(t *testing.T) {
	q, _ := newTestQueue(t, ModeProducerConsumer)

	if _, err := q.Enqueue(context.Background(), "test.job", nil); err == nil {
		t.Fatal("expected error before Start")
	}
}

func TestEnqueueUnknownType(t *testing.T) {
	q, _ := newTestQueue(t, ModeProducerConsumer)
	q.isRunning = true

	_, err := q.Enqueue(context.Background(), "nobody.handles.this", nil)
	if err == nil {
		t.Fatal("expected error for unregistered type")
	}
	if !strings.Contains(err.Error(), "no job registered") {
		t.Errorf("err = %v", err)
	}
}

func TestEnqueueReturnsMessageID(t *testing.T) {
	q, mock := newTestQueue(t, ModeProducerConsumer)
	q.RegisterJob(&stubJob{})
	q.isRunning = true

	mock.Regexp().ExpectLPush("stockcast:queue:messages", `.*"Type":"test\.job".*`).SetVal(1)

	id, err := q.Enqueue(context.Background(), "test.job", map[string]interface{}{"ticker": "AMZN"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == "" {
		t.Error("id is empty")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestRegisterJobProducerOnly(t *testing.T) {
	q, _ := newTestQueue(t, ModeProducerOnly)

	q.RegisterJob(&stubJob{})
	if len(q.jobs) != 0 {
		t.Errorf("jobs registered in producer-only mode: %d", len(q.jobs))
	}
}

func TestRegisterJobDuplicate(t *testing.T) {
	q, _ := newTestQueue(t, ModeProducerConsumer)

	q.RegisterJob(&stubJob{})
	q.RegisterJob(&stubJob{})
	if len(q.jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(q.jobs))
	}
}

func TestKeyPrefixOption(t *testing.T) {
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cli, _ := redismock.NewClientMock()
	q := NewRedisQueue(l, nil, cli, ModeProducerOnly, WithKeyPrefix("jobs"))

	if got := q.getQueueKey(); got != "jobs:messages" {
		t.Errorf("queue key = %q", got)
	}
	if got := q.getRetryKey(); got != "jobs:retry" {
		t.Errorf("retry key = %q", got)
	}
	if got := q.getDeadLetterKey(); got != "jobs:dlq" {
		t.Errorf("dlq key = %q", got)
	}
}

func TestConvertPayload(t *testing.T) {
	q, _ := newTestQueue(t, ModeProducerConsumer)

	raw, ok := q.convertPayload(map[string]interface{}{"ticker": "AMZN"}).(json.RawMessage)
	if !ok {
		t.Fatal("map payload should convert to json.RawMessage")
	}
	var decoded struct {
		Ticker string `json:"ticker"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Ticker != "AMZN" {
		t.Errorf("ticker = %q", decoded.Ticker)
	}

	if got := q.convertPayload("plain"); got != "plain" {
		t.Errorf("non-map payload changed: %v", got)
	}
}

func TestProcessMessageDispatch(t *testing.T) {
	q, _ := newTestQueue(t, ModeProducerConsumer)
	j := &stubJob{}
	q.RegisterJob(j)

	q.processMessage(Message{ID: "1", Type: "test.job", Payload: map[string]interface{}{}})
	if j.handled != 1 {
		t.Errorf("handled = %d, want 1", j.handled)
	}

	// Unknown types are logged and dropped, not retried.
	q.processMessage(Message{ID: "2", Type: "nope"})
	if j.handled != 1 {
		t.Errorf("handled = %d after unknown type, want 1", j.handled)
	}
}

func TestParsePayload(t *testing.T) {
	type payload struct {
		Ticker string `json:"ticker"`
	}

	got, err := ParsePayload[payload](map[string]interface{}{"ticker": "AMZN"})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if got.Ticker != "AMZN" {
		t.Errorf("ticker = %q", got.Ticker)
	}

	got, err = ParsePayload[payload](json.RawMessage(`{"ticker":"MSFT"}`))
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if got.Ticker != "MSFT" {
		t.Errorf("ticker = %q", got.Ticker)
	}

	if _, err := ParsePayload[payload](42); err == nil {
		t.Error("expected error for unsupported payload type")
	}
}
