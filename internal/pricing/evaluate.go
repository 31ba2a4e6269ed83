// Package pricing evaluates tenant discounts and coupons against a cart and
// computes the checkout quote. The functions in this file are pure.
package pricing

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/domain"
)

// Evaluation types beyond the four discount kinds.
const (
	TypeNone      = ""
	TypeStackable = "stackable"
	TypeCoupon    = "coupon"
)

var hundred = decimal.NewFromInt(100) //nolint:gochecknoglobals // constant

// CartLine is one menu item in the cart. A zero price marks a free item that
// a discount added.
type CartLine struct {
	ItemID   string          `json:"item_id" minLength:"1"`
	Quantity int             `json:"quantity" minimum:"0"`
	Price    decimal.Decimal `json:"price"`
}

func (l CartLine) IsFree() bool {
	return l.Price.IsZero()
}

func (l CartLine) total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	BranchID *uuid.UUID
	Lines    []CartLine
	// DiscountLimit caps the automatic and coupon discount when positive.
	DiscountLimit decimal.Decimal
}

// Subtotal sums the paid lines.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		if !l.IsFree() && l.Quantity > 0 {
			sum = sum.Add(l.total())
		}
	}
	return sum
}

type FreeItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Evaluation is the outcome of applying discounts and a coupon to a cart.
// Amount never includes the value of FreeItems: those are added to the cart
// as zero-priced lines instead.
type Evaluation struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	DiscountIDs []uuid.UUID     `json:"discount_ids"`
	CouponID    *uuid.UUID      `json:"coupon_id,omitempty"`
	FreeItems   []FreeItem      `json:"free_items"`
}

// Evaluate applies the discounts active at now. Stackable discounts
// accumulate while non-stackable ones compete, the largest single amount
// winning and ties going to the higher priority. The stacked total replaces
// that winner only when it is strictly larger. A coupon then replaces the
// automatic result when it is worth more.
func Evaluate(discounts []*domain.Discount, cart Cart, coupon *domain.Coupon, now time.Time) Evaluation {
	subtotal := cart.Subtotal()

	ordered := slices.Clone(discounts)
	slices.SortStableFunc(ordered, func(a, b *domain.Discount) int {
		return b.Priority - a.Priority
	})

	stacked := newOutcome()
	var exclusive *outcome
	for _, d := range ordered {
		if !d.ActiveAt(now) || !d.AppliesToBranch(cart.BranchID) {
			continue
		}

		amount, items := applyDiscount(d, cart.Lines)
		if amount.IsZero() && len(items) == 0 {
			continue
		}

		if d.IsStackable {
			stacked.add(d, amount, items)
			continue
		}
		if exclusive == nil || amount.GreaterThan(exclusive.amount) {
			exclusive = newOutcome()
			exclusive.add(d, amount, items)
		}
	}

	chosen := stacked
	if exclusive != nil && !stacked.amount.GreaterThan(exclusive.amount) {
		chosen = exclusive
	}
	ev := chosen.evaluation()

	if coupon != nil && coupon.UsableAt(now) {
		ca := couponAmount(coupon, subtotal)
		if ca.GreaterThan(ev.Amount) {
			id := coupon.ID
			ev = Evaluation{
				Amount:      ca,
				Type:        TypeCoupon,
				DiscountIDs: []uuid.UUID{},
				CouponID:    &id,
				FreeItems:   []FreeItem{},
			}
		}
	}

	ev.Amount = decimal.Min(ev.Amount, subtotal)
	if cart.DiscountLimit.IsPositive() {
		ev.Amount = decimal.Min(ev.Amount, cart.DiscountLimit)
	}
	ev.Amount = ev.Amount.Round(2)

	return ev
}

func couponAmount(c *domain.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if c.IsPercentage {
		return subtotal.Mul(c.DiscountAmount).Div(hundred)
	}
	return decimal.Min(c.DiscountAmount, subtotal)
}

// applyDiscount sums every rule of d.
func applyDiscount(d *domain.Discount, lines []CartLine) (decimal.Decimal, []FreeItem) {
	total := decimal.Zero
	var free []FreeItem
	for _, r := range d.Rules {
		amount, items := applyRule(d.Type, r, lines)
		total = total.Add(amount)
		free = append(free, items...)
	}
	return total, free
}

func applyRule(kind domain.DiscountType, r *domain.DiscountRule, lines []CartLine) (decimal.Decimal, []FreeItem) {
	eligible := eligibleLines(r, lines)
	if len(eligible) == 0 {
		return decimal.Zero, nil
	}

	qty, sub := 0, decimal.Zero
	for _, l := range eligible {
		qty += l.Quantity
		sub = sub.Add(l.total())
	}
	if r.MinItems != nil && qty < *r.MinItems {
		return decimal.Zero, nil
	}
	if r.MinPrice != nil && sub.LessThan(*r.MinPrice) {
		return decimal.Zero, nil
	}

	switch kind {
	case domain.DiscountVolume:
		if r.MinItems == nil {
			return decimal.Zero, nil
		}
		return ruleAmount(r, sub), nil

	case domain.DiscountCombo:
		if r.ComboSize == nil || *r.ComboSize <= 0 || len(eligible) < *r.ComboSize {
			return decimal.Zero, nil
		}
		// Combos are always a fixed amount.
		return decimal.Min(sub, r.MaxDiscountAmount), nil

	case domain.DiscountBOGO:
		buy, get, ok := buyGet(r)
		if !ok {
			return decimal.Zero, nil
		}
		var free []FreeItem
		for _, l := range eligible {
			if l.Quantity >= buy {
				free = append(free, FreeItem{ItemID: l.ItemID, Quantity: (l.Quantity / buy) * get})
			}
		}
		return decimal.Zero, free

	case domain.DiscountFreeItem:
		buy, get, ok := buyGet(r)
		if !ok || qty < buy {
			return decimal.Zero, nil
		}
		free := make([]FreeItem, 0, len(r.ExcludedItems))
		for _, id := range r.ExcludedItems {
			free = append(free, FreeItem{ItemID: id, Quantity: (qty / buy) * get})
		}
		return decimal.Zero, free
	}

	return decimal.Zero, nil
}

func ruleAmount(r *domain.DiscountRule, sub decimal.Decimal) decimal.Decimal {
	if r.IsPercentage {
		return sub.Mul(r.MaxDiscountAmount).Div(hundred)
	}
	return decimal.Min(sub, r.MaxDiscountAmount)
}

func buyGet(r *domain.DiscountRule) (int, int, bool) {
	if r.BuyQuantity == nil || r.GetQuantity == nil || *r.BuyQuantity <= 0 || *r.GetQuantity <= 0 {
		return 0, 0, false
	}
	return *r.BuyQuantity, *r.GetQuantity, true
}

// eligibleLines returns the paid lines the rule counts: every line when
// ApplicableItems is empty, minus ExcludedItems.
func eligibleLines(r *domain.DiscountRule, lines []CartLine) []CartLine {
	var out []CartLine
	for _, l := range lines {
		if l.IsFree() || l.Quantity <= 0 {
			continue
		}
		if len(r.ApplicableItems) > 0 && !slices.Contains(r.ApplicableItems, l.ItemID) {
			continue
		}
		if slices.Contains(r.ExcludedItems, l.ItemID) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// outcome accumulates the discounts chosen into one result.
type outcome struct {
	amount decimal.Decimal
	ids    []uuid.UUID
	kind   string
	free   *freeSet
}

func newOutcome() *outcome {
	return &outcome{amount: decimal.Zero, ids: []uuid.UUID{}, free: newFreeSet()}
}

func (o *outcome) add(d *domain.Discount, amount decimal.Decimal, items []FreeItem) {
	o.amount = o.amount.Add(amount)
	o.ids = append(o.ids, d.ID)
	for _, fi := range items {
		o.free.add(fi)
	}
	o.kind = string(d.Type)
	if len(o.ids) > 1 {
		o.kind = TypeStackable
	}
}

func (o *outcome) evaluation() Evaluation {
	return Evaluation{Amount: o.amount, Type: o.kind, DiscountIDs: o.ids, FreeItems: o.free.items()}
}

// freeSet merges free items by id, keeping first-seen order.
type freeSet struct {
	index map[string]int
	list  []FreeItem
}

func newFreeSet() *freeSet {
	return &freeSet{index: make(map[string]int)}
}

func (s *freeSet) add(fi FreeItem) {
	if fi.Quantity <= 0 {
		return
	}
	if i, ok := s.index[fi.ItemID]; ok {
		s.list[i].Quantity += fi.Quantity
		return
	}
	s.index[fi.ItemID] = len(s.list)
	s.list = append(s.list, fi)
}

func (s *freeSet) items() []FreeItem {
	if s.list == nil {
		return []FreeItem{}
	}
	return s.list
}
