package bogus

import (
	"context"
	"errors"
	"testing"

	"github.com/mstgnz/gomerchant/gateway"
)

func bogusCard(number string) *gateway.CreditCard {
	return &gateway.CreditCard{
		FirstName: "Longbob",
		LastName:  "Longsen",
		Number:    number,
		Month:     9,
		Year:      2099,
		Brand:     gateway.BrandBogus,
	}
}

func TestNewGateway(t *testing.T) {
	g, ok := NewGateway().(*BogusGateway)
	if !ok {
		t.Fatal("NewGateway() did not return *BogusGateway")
	}
	if g.Name() != "bogus" {
		t.Errorf("Name() = %q", g.Name())
	}
	if err := g.ValidateConfig(map[string]string{"environment": "test"}); err != nil {
		t.Errorf("ValidateConfig() error = %v", err)
	}
	if err := g.ValidateConfig(map[string]string{}); err == nil {
		t.Error("ValidateConfig() should require environment")
	}
}

func TestPurchaseAndAuthorize(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	tests := []struct {
		number  string
		success bool
		wantErr bool
	}{
		{"1", true, false},
		{"2", false, false},
		{"3", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			for name, op := range map[string]func() (*gateway.Response, error){
				"purchase":  func() (*gateway.Response, error) { return g.Purchase(ctx, 1000, bogusCard(tt.number), gateway.Options{}) },
				"authorize": func() (*gateway.Response, error) { return g.Authorize(ctx, 1000, bogusCard(tt.number), gateway.Options{}) },
			} {
				resp, err := op()
				if tt.wantErr {
					if !errors.Is(err, gateway.ErrInvalidCard) {
						t.Errorf("%s: expected ErrInvalidCard, got %v", name, err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("%s: unexpected error: %v", name, err)
				}
				if resp.Success != tt.success {
					t.Errorf("%s: Success = %v, want %v", name, resp.Success, tt.success)
				}
				if !resp.Test {
					t.Errorf("%s: bogus responses are always test responses", name)
				}
				if tt.success && resp.Authorization != authorizationToken {
					t.Errorf("%s: Authorization = %q", name, resp.Authorization)
				}
			}
		})
	}
}

func TestPurchaseRejectsNegativeAmount(t *testing.T) {
	_, err := NewGateway().Purchase(context.Background(), -5, bogusCard("1"), gateway.Options{})
	if !errors.Is(err, gateway.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestReferenceOperations(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	ops := map[string]func(ref string) (*gateway.Response, error){
		"capture": func(ref string) (*gateway.Response, error) { return g.Capture(ctx, 1000, ref, gateway.Options{}) },
		"void":    func(ref string) (*gateway.Response, error) { return g.Void(ctx, ref, gateway.Options{}) },
		"credit":  func(ref string) (*gateway.Response, error) { return g.Credit(ctx, 1000, ref, gateway.Options{}) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if _, err := op("1"); !errors.Is(err, gateway.ErrResponse) {
				t.Errorf("reference 1: expected ErrResponse, got %v", err)
			}
			resp, err := op("2")
			if err != nil || resp.Success {
				t.Errorf("reference 2: expected failure response, got %+v, %v", resp, err)
			}
			resp, err = op(authorizationToken)
			if err != nil || !resp.Success {
				t.Errorf("reference %s: expected success, got %+v, %v", authorizationToken, resp, err)
			}
		})
	}
}

func TestStoreAndUnstore(t *testing.T) {
	g := NewGateway()
	ctx := context.Background()

	resp, err := g.Store(ctx, bogusCard("1"), gateway.Options{})
	if err != nil || !resp.Success || resp.Params["billingid"] != "1" {
		t.Fatalf("Store(1) = %+v, %v", resp, err)
	}

	resp, err = g.Store(ctx, bogusCard("2"), gateway.Options{})
	if err != nil || resp.Success {
		t.Errorf("Store(2) = %+v, %v", resp, err)
	}

	if _, err := g.Store(ctx, bogusCard("3"), gateway.Options{}); err == nil {
		t.Error("Store(3) should fail")
	}

	resp, err = g.Unstore(ctx, "1", gateway.Options{})
	if err != nil || !resp.Success {
		t.Errorf("Unstore(1) = %+v, %v", resp, err)
	}
	if _, err := g.Unstore(ctx, "3", gateway.Options{}); err == nil {
		t.Error("Unstore(3) should fail")
	}
}

func TestRegistered(t *testing.T) {
	gw, err := gateway.New("bogus")
	if err != nil {
		t.Fatalf("bogus is not registered: %v", err)
	}
	if _, ok := gw.(*BogusGateway); !ok {
		t.Errorf("registry returned %T", gw)
	}
}
