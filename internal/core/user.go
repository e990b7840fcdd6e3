package core

import "time"

// SignupCredits is the free credit grant every new user receives.
const SignupCredits = 3

// UserTier labels the billing tier of an account.
type UserTier string

const (
	UserTierFree UserTier = "free"
)

// User is an account identified by its email address. Credits are only ever
// changed through the ledger operations of the store.
type User struct {
	Email     string    `json:"email" db:"email"`
	Credits   int       `json:"credits" db:"credits"`
	Tier      UserTier  `json:"tier" db:"tier"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
