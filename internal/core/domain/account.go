package domain

import "time"

// Account represents a registered player and their chip balance.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose
	DisplayName  string    `json:"display_name"`
	Balance      int64     `json:"balance"` // Chips, never negative
	AvatarSeed   string    `json:"avatar_seed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile returns the public projection of the account (everything except the credential).
func (a *Account) Profile() Profile {
	return Profile{
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Balance:     a.Balance,
		AvatarSeed:  a.AvatarSeed,
	}
}

// CanCover returns true if the balance covers the given stake.
func (a *Account) CanCover(amount int64) bool {
	return amount > 0 && a.Balance >= amount
}

// Profile is what a session exposes about its account.
type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Balance     int64  `json:"balance"`
	AvatarSeed  string `json:"avatar_seed"`
}
