// Package pricing computes order totals from an explicit price snapshot.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/shared"
)

var (
	// ErrUnresolvedPriceReference indicates an extra or tarta without a price.
	ErrUnresolvedPriceReference = errors.New("unresolved price reference")
	// ErrInvalidQuantity rejects negative quantities.
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

// LineKind groups item types by how they are priced.
type LineKind int

const (
	LineDish LineKind = iota + 1
	LineExtra
	LineTarta
	LineSkip
)

// Line is one priced order item.
type Line struct {
	Kind     LineKind
	Ref      string
	Quantity int
	Day      clock.Weekday
}

// Config is an immutable price snapshot.
type Config struct {
	Plato             decimal.Decimal            `json:"plato"`
	Envio             decimal.Decimal            `json:"envio"`
	Postre            decimal.Decimal            `json:"postre"`
	Ensalada          decimal.Decimal            `json:"ensalada"`
	Proteina          decimal.Decimal            `json:"proteina"`
	DescuentoPorPlato decimal.Decimal            `json:"descuento_por_plato"`
	UmbralDescuento   int                        `json:"umbral_descuento"`
	Tartas            map[string]decimal.Decimal `json:"tartas"`
}

// Extra add-ons are priced by category; the id to category table is fixed.
const (
	extraPostre   = 1
	extraEnsalada = 2
	extraProteina = 3
)

// ExtraPrice returns the price of the add-on with the given numeric id.
func (c Config) ExtraPrice(ref string) (decimal.Decimal, error) {
	id, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: extra %q", ErrUnresolvedPriceReference, ref)
	}
	switch id {
	case extraPostre:
		return c.Postre, nil
	case extraEnsalada:
		return c.Ensalada, nil
	case extraProteina:
		return c.Proteina, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: extra %d", ErrUnresolvedPriceReference, id)
	}
}

// TartaPrice looks a pastry up by name, ignoring case and accents.
func (c Config) TartaPrice(name string) (decimal.Decimal, error) {
	price, ok := c.Tartas[shared.Fold(name)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: tarta %q", ErrUnresolvedPriceReference, name)
	}
	return price, nil
}

// UnitPrice returns the price of a single unit of the line.
func (c Config) UnitPrice(l Line) (decimal.Decimal, error) {
	switch l.Kind {
	case LineDish:
		return c.Plato, nil
	case LineExtra:
		return c.ExtraPrice(l.Ref)
	case LineTarta:
		return c.TartaPrice(l.Ref)
	default:
		return decimal.Zero, nil
	}
}

// Result is the outcome of ComputeTotal.
type Result struct {
	Total        decimal.Decimal `json:"total"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Shipping     decimal.Decimal `json:"envio"`
	Discount     decimal.Decimal `json:"descuento"`
	Dishes       int             `json:"platos"`
	DeliveryDays int             `json:"dias_envio"`
	// Clamped is set when the discount drove the total below zero.
	Clamped bool `json:"clamped"`
}

// ComputeTotal prices the lines against cfg. Shipping is charged once per
// weekday with at least one dish; the per-dish discount applies once the dish
// count reaches the threshold. The result does not depend on line order.
func ComputeTotal(lines []Line, cfg Config) (Result, error) {
	var (
		res      Result
		subtotal = decimal.Zero
		days     = make(map[clock.Weekday]struct{})
	)
	for i, l := range lines {
		if l.Quantity < 0 {
			return Result{}, fmt.Errorf("line %d: %w", i, ErrInvalidQuantity)
		}
		if l.Kind == LineSkip {
			continue
		}
		price, err := cfg.UnitPrice(l)
		if err != nil {
			return Result{}, fmt.Errorf("line %d: %w", i, err)
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		if l.Kind == LineDish {
			res.Dishes += l.Quantity
			if l.Day.IsValid() && l.Quantity > 0 {
				days[l.Day] = struct{}{}
			}
		}
	}

	res.Subtotal = subtotal
	res.DeliveryDays = len(days)
	res.Shipping = cfg.Envio.Mul(decimal.NewFromInt(int64(res.DeliveryDays)))
	res.Discount = decimal.Zero
	if res.Dishes > 0 && res.Dishes >= cfg.UmbralDescuento {
		res.Discount = cfg.DescuentoPorPlato.Mul(decimal.NewFromInt(int64(res.Dishes)))
	}

	total := subtotal.Add(res.Shipping).Sub(res.Discount)
	if total.IsNegative() {
		total = decimal.Zero
		res.Clamped = true
	}
	res.Total = total
	return res, nil
}
