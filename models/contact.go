package models

import "time"

// Contact address type constants
const (
	AddressTypeLightning = "lightning_address"
	AddressTypeOffer     = "bolt12_offer"
	AddressTypeInvoice   = "bolt11_invoice"
)

// Contact represents a saved payment recipient
type Contact struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Addresses []ContactAddress `json:"addresses,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ContactAddress is one payment address belonging to a contact
type ContactAddress struct {
	ID        int64  `json:"id"`
	ContactID int64  `json:"contact_id,omitempty"`
	Type      string `json:"type"`
	Address   string `json:"address"`
	Label     string `json:"label,omitempty"`
}

// SupportsRecurring reports whether the address kind can be paid unattended.
// Single-use invoices cannot back a recurring payment.
func (a *ContactAddress) SupportsRecurring() bool {
	return a.Type == AddressTypeLightning || a.Type == AddressTypeOffer
}

// CreateContactRequest is the request body for creating a contact
type CreateContactRequest struct {
	Name      string                  `json:"name"`
	Addresses []ContactAddressRequest `json:"addresses"`
}

// ContactAddressRequest is one address in a contact create request
type ContactAddressRequest struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}
