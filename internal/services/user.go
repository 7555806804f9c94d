package services

import (
	"context"
	"errors"

	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user types.User) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	TouchLogin(ctx context.Context, username string) error
	List(ctx context.Context) ([]types.Profile, error)
}

// RegisterParams carries the fields required to create an account.
type RegisterParams struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo       UserRepository
	bcryptCost int
}

func NewUserService(repo UserRepository, bcryptCost int) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{repo: repo, bcryptCost: bcryptCost}
}

// Register hashes the password and creates the account. A taken username
// comes back as store.ErrDuplicate.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.bcryptCost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Username:     params.Username,
		PasswordHash: string(hashed),
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Phone:        params.Phone,
	})
}

// Authenticate reports whether the username exists and the password matches
// its stored hash. An unknown username is a plain false, never an error.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (bool, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil, nil
}

// TouchLogin stamps last_login_at for the user.
func (s *UserService) TouchLogin(ctx context.Context, username string) error {
	return s.repo.TouchLogin(ctx, username)
}

// Get returns the full profile for the user.
func (s *UserService) Get(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// List returns the public profile of every user.
func (s *UserService) List(ctx context.Context) ([]types.Profile, error) {
	return s.repo.List(ctx)
}
