package toolctx

import (
	"context"
	"sync"
	"testing"
)

func TestIsAnonymous(t *testing.T) {
	tests := []struct {
		name string
		c    *Context
		want bool
	}{
		{"nil context", nil, true},
		{"empty subject", &Context{Role: RoleCustomer}, true},
		{"identified", &Context{SubjectId: "u1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.IsAnonymous(); got != tt.want {
				t.Errorf("IsAnonymous() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessProduct(t *testing.T) {
	tests := []struct {
		name      string
		c         *Context
		productId int
		want      bool
	}{
		{"nil context sees everything", nil, 1, true},
		{"admin sees everything", &Context{SubjectId: "a", Role: RoleAdmin, AllowedProductIds: []int{9}}, 1, true},
		{"moderator sees everything", &Context{SubjectId: "m", Role: RoleModerator}, 1, true},
		{"customer without allowlist sees everything", &Context{SubjectId: "c", Role: RoleCustomer}, 1, true},
		{"customer with allowlist sees listed", &Context{SubjectId: "c", Role: RoleCustomer, AllowedProductIds: []int{1, 2}}, 2, true},
		{"customer with allowlist blocked otherwise", &Context{SubjectId: "c", Role: RoleCustomer, AllowedProductIds: []int{1, 2}}, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.CanAccessProduct(tt.productId); got != tt.want {
				t.Errorf("CanAccessProduct(%d) = %v, want %v", tt.productId, got, tt.want)
			}
		})
	}
}

func TestWithAndFrom(t *testing.T) {
	t.Run("absent means anonymous", func(t *testing.T) {
		tc, ok := From(context.Background())
		if ok || tc != nil {
			t.Errorf("From(empty) = (%v, %v), want (nil, false)", tc, ok)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		want := &Context{SubjectId: "u1", Role: RoleCustomer}
		ctx := With(context.Background(), want)

		got, ok := From(ctx)
		if !ok || got != want {
			t.Errorf("From = (%v, %v), want the installed context", got, ok)
		}
	})

	t.Run("nil value reads back as absent", func(t *testing.T) {
		ctx := With(context.Background(), nil)
		if _, ok := From(ctx); ok {
			t.Error("nil installed context should read back as absent")
		}
	})
}

// Concurrent requests must each observe their own identity; there is no
// process-wide state that one request could leak into another.
func TestContextIsolationAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			ids := []int{n}
			ctx := With(context.Background(), &Context{
				SubjectId:         "user",
				Role:              RoleCustomer,
				AllowedProductIds: ids,
			})

			tc, ok := From(ctx)
			if !ok {
				t.Error("identity missing")
				return
			}
			if !tc.CanAccessProduct(n) {
				t.Errorf("goroutine %d cannot access its own product", n)
			}
			if tc.CanAccessProduct(n + 1000) {
				t.Errorf("goroutine %d sees another product", n)
			}
		}(i)
	}
	wg.Wait()
}
