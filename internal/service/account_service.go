package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"go-student-records/internal/auth"
	"go-student-records/internal/model"
	"go-student-records/pkg/apierror"
)

const tokenTypeBearer = "Bearer"

// AccountStore is the credential store.
type AccountStore interface {
	FindByID(ctx context.Context, id int64) (model.Account, error)
	FindByUsername(ctx context.Context, username string) (model.Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CreateWithProfile(ctx context.Context, username string, passwordHash string, role auth.Role) (model.Account, error)
	Create(ctx context.Context, username string, passwordHash string, role auth.Role) (model.Account, error)
	Update(ctx context.Context, account model.Account) (model.Account, error)
	LinkUser(ctx context.Context, accountID int64, userID int64) (model.Account, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context, keepID int64) (int64, error)
	List(ctx context.Context, page int, limit int) ([]model.Account, model.Meta, error)
}

type AccountService struct {
	accounts   AccountStore
	tokens     *auth.TokenService
	audit      *AuditService
	bcryptCost int
}

func NewAccountService(accounts AccountStore, tokens *auth.TokenService, audit *AuditService, bcryptCost int) *AccountService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountService{accounts: accounts, tokens: tokens, audit: audit, bcryptCost: bcryptCost}
}

// Register creates a STUDENT account with an empty linked profile and signs
// the caller in.
func (s *AccountService) Register(ctx context.Context, req model.RegisterRequest, actor model.AuditActor) (model.AuthResponse, error) {
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return model.AuthResponse{}, err
	}
	actor.Username = username
	resource := "account:" + username

	exists, err := s.accounts.ExistsByUsername(ctx, username)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if exists {
		s.audit.Failure(ctx, model.AuditRegister, actor, resource, model.ErrUsernameTaken)
		return model.AuthResponse{}, apierror.AlreadyExists("username already exists", username)
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return model.AuthResponse{}, err
	}

	account, err := s.accounts.CreateWithProfile(ctx, username, hash, auth.RoleStudent)
	if errors.Is(err, model.ErrUsernameTaken) {
		s.audit.Failure(ctx, model.AuditRegister, actor, resource, err)
		return model.AuthResponse{}, apierror.AlreadyExists("username already exists", username)
	}
	if err != nil {
		return model.AuthResponse{}, err
	}

	actor.AccountID = account.ID
	actor.Role = account.Role.String()
	s.audit.Success(ctx, model.AuditRegister, actor, resource)

	return s.issuePair(account.Username)
}

// Login distinguishes an unknown username (404) from a wrong password (401).
func (s *AccountService) Login(ctx context.Context, req model.LoginRequest, actor model.AuditActor) (model.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	actor.Username = username
	resource := "account:" + username

	account, err := s.accounts.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrAccountNotFound) {
		s.audit.Failure(ctx, model.AuditLogin, actor, resource, err)
		return model.AuthResponse{}, apierror.NotFound("account not found")
	}
	if err != nil {
		return model.AuthResponse{}, err
	}

	actor.AccountID = account.ID
	actor.Role = account.Role.String()

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		s.audit.Failure(ctx, model.AuditLogin, actor, resource, model.ErrInvalidCredentials)
		return model.AuthResponse{}, apierror.Unauthorized("invalid credentials")
	}

	s.audit.Success(ctx, model.AuditLogin, actor, resource)
	return s.issuePair(account.Username)
}

// Refresh exchanges a correctly signed token, expired or not, for a new
// refresh token as long as its subject still names an account.
func (s *AccountService) Refresh(ctx context.Context, token string, actor model.AuditActor) (model.AuthResponse, error) {
	subject, ok := s.tokens.ExtractSubject(token)
	if !ok {
		s.audit.Failure(ctx, model.AuditRefresh, actor, "", errors.New("invalid token"))
		return model.AuthResponse{}, apierror.Unauthorized("invalid or expired token")
	}

	actor.Username = subject
	resource := "account:" + subject

	account, err := s.accounts.FindByUsername(ctx, subject)
	if errors.Is(err, model.ErrAccountNotFound) {
		s.audit.Failure(ctx, model.AuditRefresh, actor, resource, err)
		return model.AuthResponse{}, apierror.Unauthorized("invalid or expired token")
	}
	if err != nil {
		return model.AuthResponse{}, err
	}

	refresh, err := s.tokens.IssueRefreshToken(account.Username)
	if err != nil {
		return model.AuthResponse{}, err
	}

	actor.AccountID = account.ID
	actor.Role = account.Role.String()
	s.audit.Success(ctx, model.AuditRefresh, actor, resource)

	return model.AuthResponse{RefreshToken: refresh, TokenType: tokenTypeBearer}, nil
}

// EnsureAdmin creates the bootstrap ADMIN account when it does not exist yet.
func (s *AccountService) EnsureAdmin(ctx context.Context, username string, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil
	}

	exists, err := s.accounts.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check seed admin: %w", err)
	}
	if exists {
		slog.Debug("seed admin already present", "username", username)
		return nil
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}

	if _, err := s.accounts.Create(ctx, username, hash, auth.RoleAdmin); err != nil && !errors.Is(err, model.ErrUsernameTaken) {
		return fmt.Errorf("create seed admin: %w", err)
	}

	slog.Info("seed admin account created", "username", username)
	return nil
}

func (s *AccountService) Me(ctx context.Context, id *auth.Identity) (model.MeResponse, error) {
	if id == nil {
		return model.MeResponse{}, apierror.Unauthorized("authentication required")
	}

	account, err := s.accounts.FindByID(ctx, id.AccountID)
	if err != nil {
		return model.MeResponse{}, err
	}

	return model.MeResponse{Account: account, Authorities: id.Authorities.Sorted()}, nil
}

func (s *AccountService) List(ctx context.Context, page int, limit int) ([]model.Account, model.Meta, error) {
	return s.accounts.List(ctx, page, limit)
}

func (s *AccountService) Get(ctx context.Context, id int64) (model.Account, error) {
	return s.accounts.FindByID(ctx, id)
}

func (s *AccountService) Create(ctx context.Context, req model.CreateAccountRequest, actor model.AuditActor) (model.Account, error) {
	role := auth.RoleStudent
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			return model.Account{}, apierror.BadRequest("invalid role", req.Role)
		}
		role = parsed
	}

	username, err := normalizeUsername(req.Username)
	if err != nil {
		return model.Account{}, err
	}
	resource := "account:" + username

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return model.Account{}, err
	}

	account, err := s.accounts.Create(ctx, username, hash, role)
	if errors.Is(err, model.ErrUsernameTaken) {
		s.audit.Failure(ctx, model.AuditAccountCreate, actor, resource, err)
		return model.Account{}, apierror.AlreadyExists("username already exists", username)
	}
	if err != nil {
		return model.Account{}, err
	}

	s.audit.Success(ctx, model.AuditAccountCreate, actor, resource)
	return account, nil
}

func (s *AccountService) Update(ctx context.Context, id int64, req model.UpdateAccountRequest, actor model.AuditActor) (model.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return model.Account{}, err
	}

	if req.Role != nil {
		role, err := auth.ParseRole(*req.Role)
		if err != nil {
			return model.Account{}, apierror.BadRequest("invalid role", *req.Role)
		}
		account.Role = role
	}
	if req.Password != nil {
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			return model.Account{}, err
		}
		account.PasswordHash = hash
	}

	updated, err := s.accounts.Update(ctx, account)
	if err != nil {
		s.audit.Failure(ctx, model.AuditAccountUpdate, actor, accountResource(id), err)
		return model.Account{}, err
	}

	s.audit.Success(ctx, model.AuditAccountUpdate, actor, accountResource(id))
	return updated, nil
}

func (s *AccountService) Delete(ctx context.Context, id int64, actor model.AuditActor) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		s.audit.Failure(ctx, model.AuditAccountDelete, actor, accountResource(id), err)
		return err
	}

	s.audit.Success(ctx, model.AuditAccountDelete, actor, accountResource(id))
	return nil
}

// DeleteAll removes every account except the caller's.
func (s *AccountService) DeleteAll(ctx context.Context, actor model.AuditActor) (int64, error) {
	n, err := s.accounts.DeleteAll(ctx, actor.AccountID)
	if err != nil {
		s.audit.Failure(ctx, model.AuditAccountPurge, actor, "accounts", err)
		return 0, err
	}

	s.audit.Success(ctx, model.AuditAccountPurge, actor, "accounts")
	return n, nil
}

func (s *AccountService) LinkUser(ctx context.Context, accountID int64, userID int64, actor model.AuditActor) (model.Account, error) {
	resource := accountResource(accountID) + "/user:" + strconv.FormatInt(userID, 10)

	account, err := s.accounts.LinkUser(ctx, accountID, userID)
	if err != nil {
		s.audit.Failure(ctx, model.AuditAccountLink, actor, resource, err)
		return model.Account{}, err
	}

	s.audit.Success(ctx, model.AuditAccountLink, actor, resource)
	return account, nil
}

func (s *AccountService) issuePair(username string) (model.AuthResponse, error) {
	access, err := s.tokens.IssueAccessToken(username)
	if err != nil {
		return model.AuthResponse{}, err
	}

	refresh, err := s.tokens.IssueRefreshToken(username)
	if err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *AccountService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apierror.BadRequest("password is too long", "password")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// normalizeUsername trims raw and enforces the username length bounds on the
// trimmed value.
func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(username)
	if n < model.UsernameMinLen || n > model.UsernameMaxLen {
		return "", apierror.BadRequest(
			fmt.Sprintf("username must be %d to %d characters", model.UsernameMinLen, model.UsernameMaxLen), "username")
	}
	return username, nil
}

func accountResource(id int64) string {
	return "account:" + strconv.FormatInt(id, 10)
}
