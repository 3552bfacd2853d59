package domain

// WatchedAccount is one wallet address under observation.
// Corresponds to watched_accounts table in PostgreSQL.
type WatchedAccount struct {
	Address string // base58 wallet address
	Label   string // display name, e.g. the trader's handle
	AddedAt int64  // Unix timestamp in seconds
}

// Subscriber is a downstream consumer interested in some accounts or mints.
// The core only decides membership; delivery identity is opaque.
type Subscriber struct {
	ID       string   // sink-specific identifier
	Accounts []string // watched addresses of interest
	Mints    []string // token mints of interest
	Active   bool
}

// InterestedIn reports whether the subscriber tracks the account or mint.
func (s *Subscriber) InterestedIn(account, mint string) bool {
	for _, a := range s.Accounts {
		if a == account {
			return true
		}
	}
	for _, m := range s.Mints {
		if m == mint {
			return true
		}
	}
	return false
}
