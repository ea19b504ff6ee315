package types

// Money is an amount in the smallest currency unit (centavos).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
