package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/driveright-academy/internal/model"
	"github.com/mmeshcher/driveright-academy/internal/repository"
	"github.com/mmeshcher/driveright-academy/internal/validation"
)

// RegisterRequest описывает данные регистрации нового студента.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// RegisterUser регистрирует нового студента.
func (s *Service) RegisterUser(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" ||
		strings.TrimSpace(req.Phone) == "" || req.Password == "" {
		return nil, &validation.Error{Message: validation.MsgMissingRegister}
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hashed,
		Role:         model.RoleStudent,
		ProfileImage: model.DefaultProfileImage,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, repository.ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// AuthenticateUser проверяет email и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers возвращает пользователей с учётом фильтра.
func (s *Service) ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]model.User, 0, len(all))
	for _, u := range all {
		if f.Match(u) {
			res = append(res, u)
		}
	}
	return res, nil
}

// EnsureAdmin создаёт администратора с указанными email и паролем,
// если его ещё нет. Существующий пользователь повышается до администратора.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == model.RoleAdmin {
			return nil
		}
		u.Role = model.RoleAdmin
		if err := s.repo.UpdateUser(ctx, u); err != nil {
			return err
		}
		s.logger.Info("user promoted to admin", zap.String("user_id", u.ID))
		return nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return err
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	admin := &model.User{
		Name:         "Administrator",
		Email:        email,
		Phone:        "",
		PasswordHash: hashed,
		Role:         model.RoleAdmin,
		ProfileImage: model.DefaultProfileImage,
	}
	if err := s.repo.CreateUser(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("admin user created", zap.String("user_id", admin.ID))
	return nil
}
