package domain

import "time"

// Tenant is an isolated company account. All records are scoped by tenant id,
// and each tenant owns one semantic-search namespace for its knowledge base.
type Tenant struct {
	ID        string
	Name      string
	Namespace string
	CreatedAt time.Time
}
