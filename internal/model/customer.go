// internal/model/customer.go
package model

import "time"

// Customer statuses used by the seeder and the schema default. The tool
// layer does not restrict status to these values.
const (
	CustomerStatusActive   = "active"
	CustomerStatusInactive = "inactive"
)

type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CustomerFields lists the customer columns a caller may change.
var CustomerFields = []string{"name", "email", "phone", "status"}
