package repositories

import (
	"context"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
)

// UserFilters narrows user list queries.
type UserFilters struct {
	Query  string // matches name or email
	Limit  int
	Offset int
}

// UserRepository reads user records from the identity provider.
// This service is not the owner of user data, so the interface is
// read-only.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)

	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)

	ExistsByID(ctx context.Context, id string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
