// Package ledger applies order status transitions and keeps their
// append-only history.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/shared"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPendiente   Status = "pendiente"
	StatusPreparando  Status = "preparando"
	StatusEnCamino    Status = "en camino"
	StatusEntregado   Status = "entregado"
	StatusCancelado   Status = "cancelado"
	StatusNoEntregado Status = "no_entregado"
)

// Statuses lists every valid status.
func Statuses() []Status {
	return []Status{StatusPendiente, StatusPreparando, StatusEnCamino, StatusEntregado, StatusCancelado, StatusNoEntregado}
}

// ParseStatus accepts the canonical labels ignoring case and accents;
// "en_camino" and "no entregado" are accepted as spelling variants.
func ParseStatus(raw string) (Status, bool) {
	folded := shared.Fold(raw)
	folded = strings.Join(strings.Fields(folded), " ")
	switch folded {
	case "en_camino":
		folded = string(StatusEnCamino)
	case "no entregado":
		folded = string(StatusNoEntregado)
	}
	for _, s := range Statuses() {
		if string(s) == folded {
			return s, true
		}
	}
	return "", false
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, v := range Statuses() {
		if s == v {
			return true
		}
	}
	return false
}

// UnmarshalJSON normalizes the label.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, ok := ParseStatus(raw)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	*s = parsed
	return nil
}

// Entry is one immutable history row.
type Entry struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Status    Status    `json:"status"`
	Reason    *string   `json:"motivo,omitempty"`
	ChangedBy *int64    `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}
