package auth

import (
	"context"

	"carbid-backend/internal/middleware"
	"carbid-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Handlers struct {
	DB     *gorm.DB
	Rdb    *redis.Client
	Config middleware.SessionConfig
}

func (h *Handlers) Register(c *fiber.Ctx) error {
	var input RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	user, err := RegisterUser(h.DB, input)
	if err != nil {
		status := fiber.StatusBadRequest
		if err == ErrEmailTaken {
			status = fiber.StatusConflict
		}
		return response.Error(c, err.Error(), status, nil)
	}

	sid := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:   user.UserID.String(),
		Fullname: user.Fullname,
		Email:    user.Email,
		Role:     user.Role,
	})
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = sid
	c.Cookie(&cookie)

	return response.SuccessCreated(c, "Registered", fiber.Map{
		"user_id":  user.UserID,
		"fullname": user.Fullname,
		"email":    user.Email,
		"role":     user.Role,
	}, nil)
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	user, err := LoginUser(h.DB, input)
	if err != nil {
		switch err {
		case ErrEmailPasswordRequired:
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case ErrInvalidEmail, ErrIncorrectPassword:
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		}
		log.Error().Err(err).Msg("Login failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	sid := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{
		UserID:   user.UserID.String(),
		Fullname: user.Fullname,
		Email:    user.Email,
		Role:     user.Role,
	})
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = sid
	c.Cookie(&cookie)

	return response.Success(c, "Logged in", fiber.Map{
		"user_id":  user.UserID,
		"fullname": user.Fullname,
		"email":    user.Email,
		"role":     user.Role,
	}, nil)
}

func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := VerifyUser(middleware.GetUser(c))
	if err != nil {
		return response.Unauthorized(c, err.Error())
	}
	return response.Success(c, "Authenticated", user, nil)
}

func (h *Handlers) Logout(c *fiber.Ctx) error {
	if sid := middleware.GetSessionID(c); sid != "" && h.Rdb != nil {
		h.Rdb.Del(context.Background(), middleware.SessionRedisPrefix+sid)
	}
	middleware.DestroySession(c)
	c.Locals("session_id", "")

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out", nil, nil)
}
