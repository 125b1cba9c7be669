package models

// PayResult is the settlement result returned by the payment gateway
type PayResult struct {
	PaymentID     string `json:"payment_id"`
	PaymentHash   string `json:"payment_hash"`
	AmountSat     int64  `json:"amount_sat"`
	RoutingFeeSat int64  `json:"routing_fee_sat"`
}
