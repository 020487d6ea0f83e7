package queue

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestEventRoutingKey(t *testing.T) {
	got := EventRoutingKey(7, EventOrderSent)
	if got != "table.7.order.sent" {
		t.Fatalf("unexpected routing key %q", got)
	}
}

func TestJobKindForEvent(t *testing.T) {
	cases := []struct {
		eventType string
		expected  string
	}{
		{EventNotificationCreated, "push.waiter_notification"},
		{EventOrderSent, "print.kitchen_ticket"},
		{EventTableCharged, "report.table_charged"},
		{"table.renamed", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := JobKindForEvent(tc.eventType); got != tc.expected {
			t.Fatalf("JobKindForEvent(%q) = %q, expected %q", tc.eventType, got, tc.expected)
		}
	}
}

func TestGetRetryCount(t *testing.T) {
	if got := getRetryCount(nil); got != 0 {
		t.Fatalf("nil headers should give 0, got %d", got)
	}
	if got := getRetryCount(amqp.Table{"x-retry-count": int32(2)}); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := getRetryCount(amqp.Table{"x-retry-count": int64(5)}); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := getRetryCount(amqp.Table{"x-retry-count": "3"}); got != 0 {
		t.Fatalf("string header should give 0, got %d", got)
	}
}
