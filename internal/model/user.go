// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered account.
//
// Identity comes from Firebase Authentication. The provider-assigned UID is
// the primary key: it is globally unique, never changes, and is the only
// value the rest of the app trusts to scope reads and writes.
//
// WHY POINTERS FOR Email, DisplayName AND Provider?
// All three are genuinely optional. An anonymous or phone sign-in has no
// email, a brand-new account has not picked a nickname yet, and tokens minted
// by custom auth carry no sign-in provider. A nil pointer maps cleanly to SQL
// NULL and to a JSON null, which an empty string would not.
type User struct {
	UID         string    `json:"uid"`
	Email       *string   `json:"email"`
	DisplayName *string   `json:"displayName"` // user-chosen nickname, never overwritten on login
	Provider    *string   `json:"provider"`    // sign-in method, e.g. "google.com" or "password"
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}
