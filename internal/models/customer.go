package models

import "time"

// Customer is keyed by phone number. The store upserts it the first time
// a phone is resolved, so repeated conversations never duplicate it.
type Customer struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"nome" db:"nome"`
	Phone     string    `json:"telefone" db:"telefone"`
	Address   string    `json:"endereco" db:"endereco"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
