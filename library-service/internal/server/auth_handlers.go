package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/lms/library-service/internal/domain/consts"
	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/logger"
	storerrros "github.com/azaliaz/lms/library-service/internal/storage/errors"
)

type registerRequest struct {
	MobileNumber string `json:"mobileNumber" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6,bcryptlen"`
	Name         string `json:"name"`
	AdminKey     string `json:"adminKey"`
}

type loginRequest struct {
	MobileNumber string `json:"mobileNumber" validate:"required_without=Email"`
	Email        string `json:"email" validate:"omitempty,email"`
	Password     string `json:"password" validate:"required"`
}

func (s *Server) Register(ctx *gin.Context) {
	log := logger.Get()
	var req registerRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	role := models.RoleUser
	if s.adminKey != "" && req.AdminKey == s.adminKey {
		role = models.RoleAdmin
	}
	user, err := s.Storage.SaveUser(ctx.Request.Context(), models.User{
		MobileNumber: req.MobileNumber,
		Email:        req.Email,
		Name:         req.Name,
		Pass:         req.Password,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, storerrros.ErrUserExists) {
			respondError(ctx, http.StatusConflict, "User already exists")
			return
		}
		log.Error().Err(err).Msg("save user failed")
		respondError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("uid", user.UID).Str("role", user.Role).Msg("user registered")
	message(ctx, http.StatusOK, "User registered successfully")
}

func (s *Server) Login(ctx *gin.Context) {
	log := logger.Get()
	var req loginRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	user, err := s.Storage.ValidUser(ctx.Request.Context(), models.Credentials{
		MobileNumber: req.MobileNumber,
		Email:        req.Email,
		Pass:         req.Password,
	})
	if err != nil {
		if errors.Is(err, storerrros.ErrUserNotFound) || errors.Is(err, storerrros.ErrInvalidPassword) {
			log.Debug().Err(err).Msg("login rejected")
			respondError(ctx, http.StatusUnauthorized, "Invalid mobile number or password")
			return
		}
		log.Error().Err(err).Msg("validate user failed")
		respondError(ctx, http.StatusInternalServerError, err.Error())
		return
	}

	token, err := s.Tokens.Issue(user.UID, user.Role)
	if err != nil {
		log.Error().Err(err).Msg("create jwt failed")
		respondError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.Header("Authorization", token)
	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *Server) Logout(ctx *gin.Context) {
	log := logger.Get()
	if err := s.Tokens.Revoke(ctx.Request.Context(), ctx.GetString(consts.TokenKey)); err != nil {
		log.Error().Err(err).Msg("revoke token failed")
		respondError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	log.Debug().Str("uid", ctx.GetString(consts.UIDKey)).Msg("user logged out")
	message(ctx, http.StatusOK, "Logged out successfully")
}
