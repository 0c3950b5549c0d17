package payment

import (
	"strings"

	"StorefrontAPI/internal/model"
)

// StatusTable maps a provider's native status vocabulary onto the internal
// enum. Tables stay provider-scoped: one provider's in-flight state must not
// be folded into another's.
type StatusTable map[string]model.TransactionStatus

// Map normalizes a provider status. Unknown or empty values map to pending
// so a new provider state can never fail an order.
func (t StatusTable) Map(native string) model.TransactionStatus {
	if s, ok := t[strings.ToUpper(strings.TrimSpace(native))]; ok {
		return s
	}
	return model.StatusPending
}
