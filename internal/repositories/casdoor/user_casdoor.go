package casdoor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/cache"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/models"
	"github.com/moheebaljmaly/tafawuq-exam-central/internal/repositories"
)

// CasdoorConfig holds the connection settings for the identity provider.
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

const userCacheTTL = 15 * time.Minute

// UserCasdoor reads user records from Casdoor through a Redis
// read-through cache. Identities are owned by Casdoor; this service
// never writes them.
type UserCasdoor struct {
	client *casdoorsdk.Client
	store  *cache.CacheHelper
}

func NewUserCasdoor(config CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	return &UserCasdoor{
		client: casdoorsdk.NewClient(
			config.Endpoint,
			config.ClientID,
			config.ClientSecret,
			config.Certificate,
			config.OrganizationName,
			config.ApplicationName,
		),
		store: cache.NewCacheHelper(redisClient, "user:"),
	}
}

// lookup serves a user from cache, falling back to the given Casdoor
// fetch. Both the id and email keys are primed so a follow-up lookup
// through either coordinate hits.
func (u *UserCasdoor) lookup(ctx context.Context, key string, fetch func() (*casdoorsdk.User, error)) (*models.User, error) {
	var cached models.User
	if err := u.store.Get(ctx, key, &cached); err == nil && cached.ID != "" {
		return &cached, nil
	}

	remote, err := fetch()
	if err != nil {
		return nil, fmt.Errorf("casdoor lookup: %w", err)
	}
	if remote == nil {
		return nil, fmt.Errorf("user %s not found", key)
	}

	user := mapUser(remote)
	u.store.Set(ctx, "id:"+user.ID, user, userCacheTTL)
	if user.Email != "" {
		u.store.Set(ctx, "email:"+user.Email, user, userCacheTTL)
	}
	return user, nil
}

func mapUser(remote *casdoorsdk.User) *models.User {
	var createdAt time.Time
	if remote.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, remote.CreatedTime)
	}

	return &models.User{
		ID:          remote.Id,
		Email:       remote.Email,
		Name:        remote.Name,
		DisplayName: remote.DisplayName,
		Role:        mapRole(remote),
		Avatar:      remote.Avatar,
		IsActive:    !remote.IsForbidden,
		CreatedAt:   createdAt,
	}
}

// mapRole collapses Casdoor role assignments onto the three roles the
// service knows. Unrecognized assignments fall back to student.
func mapRole(remote *casdoorsdk.User) models.UserRole {
	if remote.IsAdmin {
		return models.RoleAdmin
	}
	for _, role := range remote.Roles {
		switch strings.ToLower(role.Name) {
		case "admin", "administrator":
			return models.RoleAdmin
		case "teacher", "instructor":
			return models.RoleTeacher
		}
	}
	return models.RoleStudent
}

func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	return u.lookup(ctx, "id:"+id, func() (*casdoorsdk.User, error) {
		return u.client.GetUserByUserId(id)
	})
}

func (u *UserCasdoor) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.lookup(ctx, "email:"+email, func() (*casdoorsdk.User, error) {
		return u.client.GetUserByEmail(email)
	})
}

// GetByIDs tolerates individual misses so a roster view still renders
// when one account was removed upstream.
func (u *UserCasdoor) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if user, err := u.GetByID(ctx, id); err == nil && user != nil {
			users = append(users, user)
		}
	}
	return users, nil
}

func (u *UserCasdoor) ExistsByID(ctx context.Context, id string) (bool, error) {
	if _, err := u.GetByID(ctx, id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (u *UserCasdoor) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.Role == role, nil
}

// List pages through Casdoor's user directory. Casdoor pages are
// 1-indexed, so the offset is translated.
func (u *UserCasdoor) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	page := filters.Offset/limit + 1

	query := map[string]string{}
	if filters.Query != "" {
		query["field"] = "email"
		query["value"] = filters.Query
	}

	remotes, count, err := u.client.GetPaginationUsers(page, limit, query)
	if err != nil {
		return nil, 0, fmt.Errorf("casdoor list users: %w", err)
	}

	users := make([]*models.User, 0, len(remotes))
	for _, remote := range remotes {
		if remote != nil {
			users = append(users, mapUser(remote))
		}
	}
	return users, int64(count), nil
}

var _ repositories.UserRepository = (*UserCasdoor)(nil)
