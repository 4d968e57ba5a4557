package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/searchindex"
	"github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AuthService coordinates tenant onboarding, account registration, and login.
type AuthService struct {
	users      repository.UserRepository
	tenants    repository.TenantRepository
	search     searchindex.Service
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	TenantRepo repository.TenantRepository
	Search     searchindex.Service
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tenants:    deps.TenantRepo,
		search:     deps.Search,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     deps.Logger,
	}
}

// RegisterTenant creates a company account together with its first admin and
// reserves the tenant's search namespace.
func (s *AuthService) RegisterTenant(ctx context.Context, companyName, adminName, email, password string) (*domain.Tenant, *domain.User, string, time.Time, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, nil, "", time.Time{}, errorutil.NewValidationError("company name is required", nil)
	}
	if _, err := s.tenants.GetByName(ctx, companyName); err == nil {
		return nil, nil, "", time.Time{}, errorutil.NewConflict("company name already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, "", time.Time{}, err
	}

	tenantID := uuid.NewString()
	tenant := &domain.Tenant{
		ID:        tenantID,
		Name:      companyName,
		Namespace: searchindex.NamespaceFor(tenantID),
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, nil, "", time.Time{}, err
	}

	// Namespace creation is retried on first knowledge-base write, so a
	// search outage does not block onboarding.
	if _, err := s.search.EnsureNamespace(ctx, tenant.ID); err != nil {
		s.logger.Warn("search namespace not provisioned at registration",
			zap.String("tenant_id", tenant.ID), zap.Error(err))
	}

	admin, err := s.createUser(ctx, &tenant.ID, adminName, email, password, domain.RoleAdmin)
	if err != nil {
		return nil, nil, "", time.Time{}, err
	}
	token, exp, err := s.tokenMgr.GenerateToken(admin)
	if err != nil {
		return nil, nil, "", time.Time{}, err
	}
	return tenant, admin, token, exp, nil
}

// RegisterCustomer creates a customer account under an existing tenant.
func (s *AuthService) RegisterCustomer(ctx context.Context, tenantID, name, email, password string) (*domain.User, string, time.Time, error) {
	if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errorutil.NewNotFound("tenant", nil)
		}
		return nil, "", time.Time{}, err
	}

	user, err := s.createUser(ctx, &tenantID, name, email, password, domain.RoleCustomer)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// CreateAgent provisions an agent account in the admin's tenant. Admin only.
func (s *AuthService) CreateAgent(ctx context.Context, actor *domain.User, name, email, password string) (*domain.User, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, errorutil.NewForbidden("only admins can create agents")
	}
	if actor.TenantID == nil {
		return nil, errorutil.NewForbidden("account has no tenant")
	}
	return s.createUser(ctx, actor.TenantID, name, email, password, domain.RoleAgent)
}

// Login authenticates any account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// ListAgents returns the tenant's staff accounts for assignment pickers.
func (s *AuthService) ListAgents(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if actor == nil || !actor.IsStaff() || actor.TenantID == nil {
		return nil, errorutil.NewForbidden("staff access required")
	}
	agents, err := s.users.ListByTenantRole(ctx, *actor.TenantID, domain.RoleAgent)
	if err != nil {
		return nil, err
	}
	admins, err := s.users.ListByTenantRole(ctx, *actor.TenantID, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return append(agents, admins...), nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) createUser(ctx context.Context, tenantID *string, name, email, password string, role domain.UserRole) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, errorutil.NewValidationError("name and email are required", nil)
	}
	if len(password) < 8 {
		return nil, errorutil.NewValidationError("password must be at least 8 characters", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, errorutil.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		TenantID:     tenantID,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
