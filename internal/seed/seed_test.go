package seed

import (
	"context"
	"testing"

	"atmservice/internal/config"
	"atmservice/internal/repository/memory"
	"atmservice/internal/security"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestProvision(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	customers := []config.SeedCustomer{{
		Name:       "Alice Carter",
		CardNumber: "4111111111111111",
		PIN:        "p@ssw0rd",
		Balance:    "1200.00",
		DailyLimit: "500.00",
	}}

	n, err := Provision(ctx, store, customers, bcrypt.MinCost, zap.NewNop())
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}

	c, err := store.Customers().GetByCardNumber(ctx, "4111111111111111")
	if err != nil {
		t.Fatal(err)
	}
	if !(security.BcryptVerifier{}).Verify("p@ssw0rd", c.PinHash) {
		t.Fatal("stored hash does not match PIN")
	}
	a, err := store.Accounts().GetByCustomerID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.Balance.StringFixed(2) != "1200.00" || a.DailyLimit.StringFixed(2) != "500.00" {
		t.Fatalf("account=%+v", a)
	}

	// Re-running is a no-op.
	n, err = Provision(ctx, store, customers, bcrypt.MinCost, zap.NewNop())
	if err != nil || n != 0 {
		t.Fatalf("second run n=%d err=%v", n, err)
	}
}

func TestProvisionRejectsBadEntries(t *testing.T) {
	bad := []config.SeedCustomer{
		{Name: "A", CardNumber: "", PIN: "1", Balance: "1", DailyLimit: "1"},
		{Name: "B", CardNumber: "1", PIN: "1", Balance: "lots", DailyLimit: "1"},
		{Name: "C", CardNumber: "2", PIN: "1", Balance: "1", DailyLimit: "-1"},
	}
	for _, sc := range bad {
		if _, err := Provision(context.Background(), memory.NewStore(), []config.SeedCustomer{sc}, bcrypt.MinCost, zap.NewNop()); err == nil {
			t.Fatalf("%s: expected error", sc.Name)
		}
	}
}
