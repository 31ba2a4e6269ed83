package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/domain"
)

// LineChange is one edit the client applies to its cart so that the free
// lines match an Evaluation. Quantity 0 removes the line.
type LineChange struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	IsNew    bool   `json:"is_new"`
}

// Reconcile diffs the zero-priced lines of cart against the free items the
// evaluation requires. Lines no longer required drop to 0, wrong quantities
// are corrected and missing free items are appended with IsNew set.
func Reconcile(cart Cart, ev Evaluation) []LineChange {
	required := make(map[string]int, len(ev.FreeItems))
	for _, fi := range ev.FreeItems {
		required[fi.ItemID] += fi.Quantity
	}

	changes := []LineChange{}
	seen := make(map[string]bool)
	for _, l := range cart.Lines {
		if !l.IsFree() {
			continue
		}
		want := required[l.ItemID]
		if seen[l.ItemID] {
			want = 0
		}
		seen[l.ItemID] = true
		if l.Quantity != want {
			changes = append(changes, LineChange{ItemID: l.ItemID, Quantity: want})
		}
	}

	for _, fi := range ev.FreeItems {
		if seen[fi.ItemID] || required[fi.ItemID] <= 0 {
			continue
		}
		seen[fi.ItemID] = true
		changes = append(changes, LineChange{ItemID: fi.ItemID, Quantity: required[fi.ItemID], IsNew: true})
	}

	return changes
}

// Apply returns a copy of cart whose free lines match ev: the first line of
// each required item keeps its position with the required quantity, other
// free lines are dropped and missing items are appended at price zero.
func Apply(cart Cart, ev Evaluation) Cart {
	required := make(map[string]int, len(ev.FreeItems))
	for _, fi := range ev.FreeItems {
		required[fi.ItemID] += fi.Quantity
	}

	out := cart
	out.Lines = make([]CartLine, 0, len(cart.Lines)+len(ev.FreeItems))
	placed := make(map[string]bool)
	for _, l := range cart.Lines {
		if l.IsFree() {
			if placed[l.ItemID] || required[l.ItemID] <= 0 {
				continue
			}
			placed[l.ItemID] = true
			l.Quantity = required[l.ItemID]
		}
		out.Lines = append(out.Lines, l)
	}
	for _, fi := range ev.FreeItems {
		if placed[fi.ItemID] || required[fi.ItemID] <= 0 {
			continue
		}
		placed[fi.ItemID] = true
		out.Lines = append(out.Lines, CartLine{ItemID: fi.ItemID, Quantity: required[fi.ItemID], Price: decimal.Zero})
	}
	return out
}

// Breakdown is the price breakdown of a checkout.
type Breakdown struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	Discount      decimal.Decimal `json:"discount"`
	Redeem        decimal.Decimal `json:"redeem"`
	Total         decimal.Decimal `json:"total"`
}

// Quote applies the tenant's tax and service charge percentages to the
// cart subtotal, then subtracts the discount and the redeemed amount. Redeem
// is capped by what is left to pay so the total never drops below zero.
func Quote(tenant *domain.Tenant, cart Cart, ev Evaluation, redeem decimal.Decimal) Breakdown {
	subtotal := cart.Subtotal()
	tax := subtotal.Mul(tenant.Tax).Div(hundred)
	service := subtotal.Mul(tenant.ServiceCharge).Div(hundred)

	due := subtotal.Add(tax).Add(service).Sub(ev.Amount)
	if due.IsNegative() {
		due = decimal.Zero
	}
	redeem = decimal.Max(decimal.Min(redeem, due), decimal.Zero)
	total := due.Sub(redeem)

	return Breakdown{
		Subtotal:      subtotal.Round(2),
		Tax:           tax.Round(2),
		ServiceCharge: service.Round(2),
		Discount:      ev.Amount.Round(2),
		Redeem:        redeem.Round(2),
		Total:         total.Round(2),
	}
}
