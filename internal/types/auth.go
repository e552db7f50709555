package types

// TokenInfo represents validated bearer token information
type TokenInfo struct {
	Subject string
	Email   string
	Name    string
	Role    string
	Issuer  string
}
