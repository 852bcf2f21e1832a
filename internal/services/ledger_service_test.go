package services

import (
	"context"
	"sync"
	"testing"

	"github.com/nasiyabot/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_DebtsAndPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.owner(t, 1, "Corner")

	customer, err := f.ledger.CreateCustomer(ctx, 1, 1, "Ali", "998901234567")
	require.NoError(t, err)

	t.Run("debt increases balance", func(t *testing.T) {
		res, err := f.ledger.RecordDebt(ctx, 1, customer.ID, 100, "flour")
		require.NoError(t, err)
		assert.Equal(t, 100.0, res.NewBalance)
		assert.Equal(t, 100.0, res.Transaction.Amount)
	})

	t.Run("payment decreases balance", func(t *testing.T) {
		res, err := f.ledger.RecordPayment(ctx, 1, customer.ID, 40, "cash")
		require.NoError(t, err)
		assert.Equal(t, 60.0, res.NewBalance)
		assert.Equal(t, -40.0, res.Transaction.Amount)
		assert.Equal(t, models.KindPayment, res.Transaction.Kind())
	})

	t.Run("overpayment goes negative", func(t *testing.T) {
		res, err := f.ledger.RecordPayment(ctx, 1, customer.ID, 100, "")
		require.NoError(t, err)
		assert.Equal(t, -40.0, res.NewBalance)
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := f.ledger.RecordDebt(ctx, 1, 9999, 10, "")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("balances reconcile", func(t *testing.T) {
		mismatches, err := f.store.ReconcileBalances(ctx)
		require.NoError(t, err)
		assert.Empty(t, mismatches)
	})
}

func TestLedgerService_ConcurrentDebts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.owner(t, 1, "Corner")

	customer, err := f.ledger.CreateCustomer(ctx, 1, 1, "Ali", "901234567")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RecordDebt(ctx, 1, customer.ID, 4, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.store.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Balance)

	mismatches, err := f.store.ReconcileBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestLedgerService_CreateCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.owner(t, 1, "Corner")

	_, _, err := f.ledger.RegisterCustomer(ctx, Profile{ID: 50, FullName: "Buyer"}, "998901234567")
	require.NoError(t, err)

	t.Run("links to registered account by suffix", func(t *testing.T) {
		c, err := f.ledger.CreateCustomer(ctx, 1, 1, "Buyer", "901234567")
		require.NoError(t, err)
		require.NotNil(t, c.AccountID)
		assert.Equal(t, int64(50), *c.AccountID)
	})

	t.Run("unlinked when no account matches", func(t *testing.T) {
		c, err := f.ledger.CreateCustomer(ctx, 1, 1, "Stranger", "998977777777")
		require.NoError(t, err)
		assert.False(t, c.IsLinked())
	})

	t.Run("duplicate phone in tenant", func(t *testing.T) {
		_, err := f.ledger.CreateCustomer(ctx, 1, 1, "Again", "998977777777")
		assert.ErrorIs(t, err, models.ErrDuplicatePhone)
	})

	t.Run("same phone in another tenant", func(t *testing.T) {
		f.owner(t, 2, "Bazaar")
		_, err := f.ledger.CreateCustomer(ctx, 2, 2, "Stranger", "998977777777")
		assert.NoError(t, err)
	})
}

func TestLedgerService_DeleteCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.owner(t, 1, "Corner")

	c, err := f.ledger.CreateCustomer(ctx, 1, 1, "Ali", "901234567")
	require.NoError(t, err)
	_, err = f.ledger.RecordDebt(ctx, 1, c.ID, 50, "")
	require.NoError(t, err)

	t.Run("refuses outstanding balance", func(t *testing.T) {
		err := f.ledger.DeleteCustomer(ctx, 1, 1, c.ID)
		assert.ErrorIs(t, err, models.ErrOutstandingBalance)
	})

	t.Run("other tenant cannot delete", func(t *testing.T) {
		err := f.ledger.DeleteCustomer(ctx, 2, 2, c.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("settled customer is removed with history", func(t *testing.T) {
		_, err := f.ledger.RecordPayment(ctx, 1, c.ID, 50, "")
		require.NoError(t, err)

		require.NoError(t, f.ledger.DeleteCustomer(ctx, 1, 1, c.ID))

		_, err = f.store.GetCustomer(ctx, c.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		txns, err := f.store.RecentTransactions(ctx, c.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, txns)
	})
}

func TestLedgerService_StaffMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.owner(t, 1, "Corner")

	_, _, err := f.ledger.RegisterCustomer(ctx, Profile{ID: 20, FullName: "Clerk"}, "998902222222")
	require.NoError(t, err)

	t.Run("unknown phone", func(t *testing.T) {
		_, err := f.ledger.PromoteToStaff(ctx, 1, "Corner", "998909999999")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("promote", func(t *testing.T) {
		acc, err := f.ledger.PromoteToStaff(ctx, 1, "Corner", "+998 90 222 22 22")
		require.NoError(t, err)
		assert.Equal(t, int64(20), acc.ID)

		tenant, ok, err := f.identity.ResolveTenant(ctx, 20)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), tenant.OwnerID)
	})

	t.Run("already staff", func(t *testing.T) {
		_, err := f.ledger.PromoteToStaff(ctx, 1, "Corner", "902222222")
		assert.ErrorIs(t, err, models.ErrAlreadyStaff)
	})

	t.Run("demote", func(t *testing.T) {
		require.NoError(t, f.ledger.DemoteStaff(ctx, 1, 20))
		acc, err := f.store.GetAccount(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, models.RoleCustomer, acc.Role)
		assert.Empty(t, acc.TenantName)
	})

	t.Run("blocked account cannot be promoted", func(t *testing.T) {
		require.NoError(t, f.ledger.BlockAccount(ctx, 0, 20))
		_, err := f.ledger.PromoteToStaff(ctx, 1, "Corner", "902222222")
		assert.ErrorIs(t, err, models.ErrBlocked)
	})

	t.Run("unblock", func(t *testing.T) {
		require.NoError(t, f.ledger.UnblockAccount(ctx, 0, 20))
		acc, err := f.store.GetAccount(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, models.RoleCustomer, acc.Role)

		assert.ErrorIs(t, f.ledger.UnblockAccount(ctx, 0, 20), models.ErrNotBlocked)
	})
}

func TestLedgerService_Registration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("store registration makes owner", func(t *testing.T) {
		acc, err := f.ledger.RegisterStore(ctx, Profile{ID: 1, FullName: "Owner"}, "Corner",
			[]string{"998901110000", "998901110001"})
		require.NoError(t, err)
		assert.True(t, acc.IsOwner)
		assert.Equal(t, "998901110000", acc.Phone)

		stored, err := f.store.GetAccount(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"998901110000", "998901110001"}, stored.ContactPhones)
	})

	t.Run("store name taken", func(t *testing.T) {
		_, err := f.ledger.RegisterStore(ctx, Profile{ID: 2}, "Corner", []string{"998901110002"})
		assert.ErrorIs(t, err, models.ErrTenantNameTaken)
	})

	t.Run("customer registration links ledgers", func(t *testing.T) {
		_, err := f.ledger.CreateCustomer(ctx, 1, 1, "Buyer", "901234567")
		require.NoError(t, err)

		_, linked, err := f.ledger.RegisterCustomer(ctx, Profile{ID: 30}, "998901234567")
		require.NoError(t, err)
		assert.Equal(t, int64(1), linked)

		debts, err := f.store.ListCustomerDebts(ctx, 30)
		require.NoError(t, err)
		require.Len(t, debts, 1)
		assert.Equal(t, "Corner", debts[0].TenantName)
	})

	t.Run("staff cannot re-register as customer", func(t *testing.T) {
		_, _, err := f.ledger.RegisterCustomer(ctx, Profile{ID: 1}, "998901110000")
		assert.ErrorIs(t, err, models.ErrAlreadyStaff)
	})

	t.Run("blocked account cannot register", func(t *testing.T) {
		require.NoError(t, f.ledger.BlockAccount(ctx, 0, 30))
		_, err := f.ledger.RegisterStore(ctx, Profile{ID: 30}, "Fresh", []string{"998901234567"})
		assert.ErrorIs(t, err, models.ErrBlocked)
		_, _, err = f.ledger.RegisterCustomer(ctx, Profile{ID: 30}, "998901234567")
		assert.ErrorIs(t, err, models.ErrBlocked)
	})
}

func TestLedgerService_RenameTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.owner(t, 1, "Corner")
	f.owner(t, 2, "Bazaar")

	_, _, err := f.ledger.RegisterCustomer(ctx, Profile{ID: 20}, "998902222222")
	require.NoError(t, err)
	_, err = f.ledger.PromoteToStaff(ctx, 1, "Corner", "998902222222")
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.RenameTenant(ctx, owner, "Bazaar"), models.ErrTenantNameTaken)

	require.NoError(t, f.ledger.RenameTenant(ctx, owner, "Corner Plus"))
	staff, err := f.store.ListTenantStaff(ctx, "Corner Plus")
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, int64(1), staff[0].ID)
}

func TestLedgerService_EnsureSuperadmin(t *testing.T) {
	f := newFixture(t, 7)
	ctx := context.Background()

	acc, err := f.ledger.EnsureSuperadmin(ctx, Profile{ID: 7, FullName: "Root"})
	require.NoError(t, err)
	assert.Equal(t, PlatformTenant(7), acc.TenantName)
	assert.True(t, acc.IsOwner)

	again, err := f.ledger.EnsureSuperadmin(ctx, Profile{ID: 7, FullName: "Root Renamed"})
	require.NoError(t, err)
	assert.Equal(t, PlatformTenant(7), again.TenantName)

	tenant, ok, err := f.identity.ResolveTenant(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), tenant.OwnerID)
}
