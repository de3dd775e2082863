// Package orders places weekly orders and serves the order read surface.
package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/catalog"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/ledger"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/pricing"
)

// ItemType is the kind of an order line.
type ItemType string

const (
	ItemDaily ItemType = "daily"
	ItemFixed ItemType = "fijo"
	ItemExtra ItemType = "extra"
	ItemTarta ItemType = "tarta"
	ItemSkip  ItemType = "skip"
)

// ParseItemType accepts the stored labels plus "fixed".
func ParseItemType(raw string) (ItemType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "daily":
		return ItemDaily, true
	case "fijo", "fixed":
		return ItemFixed, true
	case "extra":
		return ItemExtra, true
	case "tarta":
		return ItemTarta, true
	case "skip":
		return ItemSkip, true
	}
	return "", false
}

// DayBound reports whether the type must carry a weekday and a catalog id.
func (t ItemType) DayBound() bool {
	return t == ItemDaily || t == ItemFixed || t == ItemExtra
}

func (t ItemType) lineKind() pricing.LineKind {
	switch t {
	case ItemDaily, ItemFixed:
		return pricing.LineDish
	case ItemExtra:
		return pricing.LineExtra
	case ItemTarta:
		return pricing.LineTarta
	default:
		return pricing.LineSkip
	}
}

func (t ItemType) catalogKind() catalog.Kind {
	switch t {
	case ItemDaily:
		return catalog.KindDaily
	case ItemFixed:
		return catalog.KindFixed
	default:
		return catalog.KindExtra
	}
}

// Ref is an item reference sent either as a JSON number or a string.
type Ref string

// UnmarshalJSON accepts 12, "12" and "Tarta de jamón".
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item_id: %w", err)
	}
	*r = Ref(n.String())
	return nil
}

// ID parses the reference as a positive catalog id.
func (r Ref) ID() (int64, bool) {
	id, err := strconv.ParseInt(string(r), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Order is the order header.
type Order struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod *string         `json:"metodo_pago,omitempty"`
	Observations  *string         `json:"observaciones,omitempty"`
	ReceiptURL    *string         `json:"comprobante_url,omitempty"`
	DeliveryDate  clock.Date      `json:"fecha_entrega"`
	Status        ledger.Status   `json:"status"`
	MenuType      string          `json:"tipo_menu"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []Item          `json:"items,omitempty"`
}

// Item is a persisted order line.
type Item struct {
	ID        int64            `json:"id"`
	OrderID   int64            `json:"order_id"`
	Type      ItemType         `json:"item_type"`
	Ref       string           `json:"item_id"`
	Name      string           `json:"resolved_name"`
	Quantity  int              `json:"quantity"`
	Day       *clock.Weekday   `json:"dia,omitempty"`
	DayDate   *clock.Date      `json:"fecha_dia,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}
