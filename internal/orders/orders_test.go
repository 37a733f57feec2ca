package orders

import (
	"context"
	"errors"
	"testing"
)

func TestCreateOrder(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	order, err := svc.Create(context.Background(), "user-1", "blessing_basic", "wish-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if order.Status != StatusPending {
		t.Fatalf("status = %q, want pending", order.Status)
	}
	if order.AmountFen != 600 {
		t.Fatalf("amount = %d, want 600", order.AmountFen)
	}
	if order.WishID != "wish-1" {
		t.Fatalf("wishId = %q", order.WishID)
	}
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.Create(context.Background(), "user-1", "golden_statue", ""); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("err = %v, want ErrUnknownProduct", err)
	}
}

func TestListOrdersScopedToUser(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if _, err := svc.Create(context.Background(), "user-1", "blessing_basic", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "user-1", "lamp_monthly", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "user-2", "blessing_premium", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := svc.List(context.Background(), "user-1", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	for _, o := range list {
		if o.UserID != "user-1" {
			t.Fatalf("leaked order for %q", o.UserID)
		}
	}
}
