package models

import "time"

// Customer is a loyalty-program member as exposed by the customer directory.
type Customer struct {
	ID          string    `json:"id"`
	Contact     string    `json:"contact"`
	DisplayName string    `json:"display_name"`
	Nationality string    `json:"nationality"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

// CustomerFilter narrows directory queries. The zero value matches everyone.
type CustomerFilter struct {
	Nationality string
	MinPoints   int
	// RequireContact drops customers whose contact field is empty; a
	// recipient without a contact is undeliverable.
	RequireContact bool
}
