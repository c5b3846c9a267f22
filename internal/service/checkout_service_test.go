package service

import (
	"context"
	"testing"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/models"
)

func TestCheckoutReplayReturnsCurrentState(t *testing.T) {
	env := newServiceTestEnv(t)
	ctx := context.Background()
	input := env.orderInput(4, constants.PaymentMethodOnline, CheckoutItem{ProductID: env.productA.ID, Quantity: 1})
	input.ClientRequestID = "retry-me"

	first, err := env.checkout.Checkout(ctx, input)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	second, err := env.checkout.Checkout(ctx, input)
	if err != nil {
		t.Fatalf("replayed checkout failed: %v", err)
	}
	if !second.Replayed || second.Order.OrderNumber != first.Order.OrderNumber {
		t.Fatalf("expected replay, got %+v", second)
	}
	if second.Session == nil || second.Session.SessionID != first.Session.SessionID {
		t.Fatalf("replay should return the same gateway session")
	}
	if got := env.countRows(t, &models.Order{}); got != 1 {
		t.Fatalf("expected a single order, got %d", got)
	}
}

func TestCheckoutReplayResumesOrderStuckInCreated(t *testing.T) {
	env := newServiceTestEnv(t)
	ctx := context.Background()
	input := env.orderInput(4, constants.PaymentMethodCOD, CheckoutItem{ProductID: env.productA.ID, Quantity: 1})
	input.ClientRequestID = "half-done"
	if _, err := env.orders.CreateOrder(ctx, input); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	result, err := env.checkout.Checkout(ctx, input)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !result.Replayed || result.Order.PaymentStatus != constants.PaymentStatusPending {
		t.Fatalf("replay should finish the payment begin: %+v", result.Order)
	}
	if env.trigger.count() != 1 {
		t.Fatalf("expected one dispatch trigger, got %d", env.trigger.count())
	}
}
