package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/pricing"
)

func TestReconcile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lines []pricing.CartLine
		free  []pricing.FreeItem
		want  []pricing.LineChange
	}{
		{
			name:  "nothing to do",
			lines: []pricing.CartLine{line("tibs", 2, "50"), line("soda", 1, "0")},
			free:  []pricing.FreeItem{{ItemID: "soda", Quantity: 1}},
			want:  []pricing.LineChange{},
		},
		{
			name:  "free line no longer required",
			lines: []pricing.CartLine{line("tibs", 1, "50"), line("soda", 1, "0")},
			want:  []pricing.LineChange{{ItemID: "soda", Quantity: 0}},
		},
		{
			name:  "wrong quantity corrected",
			lines: []pricing.CartLine{line("tibs", 6, "50"), line("tibs", 1, "0")},
			free:  []pricing.FreeItem{{ItemID: "tibs", Quantity: 3}},
			want:  []pricing.LineChange{{ItemID: "tibs", Quantity: 3}},
		},
		{
			name:  "missing free item added",
			lines: []pricing.CartLine{line("tibs", 2, "50")},
			free:  []pricing.FreeItem{{ItemID: "soda", Quantity: 2}},
			want:  []pricing.LineChange{{ItemID: "soda", Quantity: 2, IsNew: true}},
		},
		{
			name:  "duplicate free lines collapse",
			lines: []pricing.CartLine{line("soda", 1, "0"), line("soda", 1, "0")},
			free:  []pricing.FreeItem{{ItemID: "soda", Quantity: 1}},
			want:  []pricing.LineChange{{ItemID: "soda", Quantity: 0}},
		},
		{
			name:  "paid lines untouched",
			lines: []pricing.CartLine{line("soda", 1, "20")},
			free:  []pricing.FreeItem{{ItemID: "soda", Quantity: 1}},
			want:  []pricing.LineChange{{ItemID: "soda", Quantity: 1, IsNew: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev := pricing.Evaluation{FreeItems: tt.free}
			got := pricing.Reconcile(pricing.Cart{Lines: tt.lines}, ev)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	cart := pricing.Cart{Lines: []pricing.CartLine{
		line("soda", 5, "0"),
		line("tibs", 4, "50"),
		line("cake", 1, "0"),
	}}
	ev := pricing.Evaluation{FreeItems: []pricing.FreeItem{
		{ItemID: "soda", Quantity: 2},
		{ItemID: "tea", Quantity: 1},
	}}

	got := pricing.Apply(cart, ev)
	require.Len(t, got.Lines, 3)
	for i, want := range []struct {
		id   string
		qty  int
		free bool
	}{
		{"soda", 2, true},
		{"tibs", 4, false},
		{"tea", 1, true},
	} {
		assert.Equal(t, want.id, got.Lines[i].ItemID)
		assert.Equal(t, want.qty, got.Lines[i].Quantity)
		assert.Equal(t, want.free, got.Lines[i].IsFree())
	}
	assert.Equal(t, 5, cart.Lines[0].Quantity, "input cart is not modified")
}

func TestQuote(t *testing.T) {
	t.Parallel()

	tenant := &domain.Tenant{Tax: dec("15"), ServiceCharge: dec("10")}
	cart := pricing.Cart{Lines: []pricing.CartLine{line("tibs", 2, "100"), line("soda", 1, "0")}}

	t.Run("full breakdown", func(t *testing.T) {
		t.Parallel()

		q := pricing.Quote(tenant, cart, pricing.Evaluation{Amount: dec("20")}, dec("5"))
		assertDec(t, "200", q.Subtotal)
		assertDec(t, "30", q.Tax)
		assertDec(t, "20", q.ServiceCharge)
		assertDec(t, "20", q.Discount)
		assertDec(t, "5", q.Redeem)
		assertDec(t, "225", q.Total)
	})

	t.Run("redeem capped at amount due", func(t *testing.T) {
		t.Parallel()

		q := pricing.Quote(tenant, cart, pricing.Evaluation{Amount: dec("200")}, dec("1000"))
		assertDec(t, "50", q.Redeem)
		assertDec(t, "0", q.Total)
	})

	t.Run("rounded to cents", func(t *testing.T) {
		t.Parallel()

		odd := &domain.Tenant{Tax: dec("15"), ServiceCharge: dec("0")}
		q := pricing.Quote(odd, pricing.Cart{Lines: []pricing.CartLine{line("tea", 1, "3.33")}}, pricing.Evaluation{Amount: dec("0")}, dec("0"))
		assertDec(t, "0.5", q.Tax)
		assertDec(t, "3.83", q.Total)
	})
}
