package enums

import "testing"

func TestParseOrderStatusIsCaseInsensitive(t *testing.T) {
	cases := map[string]OrderStatus{
		"Pending":    OrderStatusPending,
		"shipping":   OrderStatusShipping,
		" COMPLETED": OrderStatusCompleted,
		"Cancelled":  OrderStatusCancelled,
	}
	for raw, want := range cases {
		got, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s got %s", raw, want, got)
		}
	}
	if _, err := ParseOrderStatus("refunded"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusPending.IsTerminal() || OrderStatusShipping.IsTerminal() {
		t.Fatal("pending and shipping must not be terminal")
	}
	if !OrderStatusCompleted.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatal("completed and cancelled must be terminal")
	}
}

func TestParsePaymentMethodAliases(t *testing.T) {
	cases := map[string]PaymentMethod{
		"":        PaymentMethodCOD,
		"COD":     PaymentMethodCOD,
		"gateway": PaymentMethodGateway,
		"VNPAY":   PaymentMethodGateway,
	}
	for raw, want := range cases {
		got, err := ParsePaymentMethod(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s got %s", raw, want, got)
		}
	}
	if _, err := ParsePaymentMethod("bitcoin"); err == nil {
		t.Fatal("expected unknown method to fail")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if got, err := ParsePaymentStatus("Paid"); err != nil || got != PaymentStatusPaid {
		t.Fatalf("expected paid, got %s (%v)", got, err)
	}
	if _, err := ParsePaymentStatus("refunded"); err == nil {
		t.Fatal("expected unknown payment status to fail")
	}
}

func TestParseStatsTimeframeDefaultsToWeek(t *testing.T) {
	got, err := ParseStatsTimeframe("")
	if err != nil || got != StatsTimeframeWeek {
		t.Fatalf("expected week default, got %s (%v)", got, err)
	}
	if _, err := ParseStatsTimeframe("decade"); err == nil {
		t.Fatal("expected unknown timeframe to fail")
	}
}

func TestCallbackOutcomeSucceeded(t *testing.T) {
	if !CallbackOutcomePaid.Succeeded() || !CallbackOutcomeAlreadyPaid.Succeeded() {
		t.Fatal("paid outcomes must succeed")
	}
	if CallbackOutcomePaymentFailed.Succeeded() || CallbackOutcomeOrderCancelled.Succeeded() {
		t.Fatal("failed outcomes must not succeed")
	}
}

func TestParseOrderEventType(t *testing.T) {
	got, err := ParseOrderEventType("order.paid")
	if err != nil || got != OrderEventPaid {
		t.Fatalf("expected order.paid, got %q (%v)", got, err)
	}
	if _, err := ParseOrderEventType("order.refunded"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
	if OrderEventType("").IsValid() {
		t.Fatal("empty event type must be invalid")
	}
}
