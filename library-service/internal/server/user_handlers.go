package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/lms/library-service/internal/domain/consts"
	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/logger"
)

type userRequest struct {
	MobileNumber string `json:"mobileNumber" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6,bcryptlen"`
	Name         string `json:"name"`
	Role         string `json:"role" validate:"omitempty,oneof=user admin"`
}

type userPatch struct {
	MobileNumber *string `json:"mobileNumber" validate:"omitnil,min=1"`
	Email        *string `json:"email" validate:"omitnil,email"`
	Password     *string `json:"password" validate:"omitnil,min=6,bcryptlen"`
	Name         *string `json:"name"`
	Role         *string `json:"role" validate:"omitnil,oneof=user admin"`
}

// adminOrSelf reports whether the caller may act on the record owned by uid.
func adminOrSelf(ctx *gin.Context, uid string) bool {
	return ctx.GetString(consts.RoleKey) == models.RoleAdmin || ctx.GetString(consts.UIDKey) == uid
}

func (s *Server) UserInfo(ctx *gin.Context) {
	log := logger.Get()
	uid := ctx.GetString(consts.UIDKey)
	user, err := s.Storage.GetUser(ctx.Request.Context(), uid)
	if err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("failed get user from db")
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, user)
}

func (s *Server) AllUsers(ctx *gin.Context) {
	page, err := pageFromQuery(ctx)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	users, err := s.Storage.GetUsers(ctx.Request.Context(), page)
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, users)
}

func (s *Server) UserByID(ctx *gin.Context) {
	uid := ctx.Param("id")
	if !adminOrSelf(ctx, uid) {
		respondError(ctx, http.StatusForbidden, "Forbidden - Access denied")
		return
	}
	user, err := s.Storage.GetUser(ctx.Request.Context(), uid)
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, user)
}

func (s *Server) AddUser(ctx *gin.Context) {
	var req userRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	user, err := s.Storage.SaveUser(ctx.Request.Context(), models.User{
		MobileNumber: req.MobileNumber,
		Email:        req.Email,
		Name:         req.Name,
		Pass:         req.Password,
		Role:         req.Role,
	})
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, user)
}

// UpdateUser lets a user edit their own record. Only admins may change roles.
func (s *Server) UpdateUser(ctx *gin.Context) {
	uid := ctx.Param("id")
	if !adminOrSelf(ctx, uid) {
		respondError(ctx, http.StatusForbidden, "Forbidden - Access denied")
		return
	}
	var req userPatch
	if !s.bindJSON(ctx, &req) {
		return
	}
	if req.Role != nil && ctx.GetString(consts.RoleKey) != models.RoleAdmin {
		respondError(ctx, http.StatusForbidden, "Forbidden - Admin access only")
		return
	}
	user, err := s.Storage.UpdateUser(ctx.Request.Context(), uid, models.UserUpdate{
		MobileNumber: req.MobileNumber,
		Email:        req.Email,
		Name:         req.Name,
		Pass:         req.Password,
		Role:         req.Role,
	})
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, user)
}

func (s *Server) RemoveUser(ctx *gin.Context) {
	log := logger.Get()
	uid := ctx.Param("id")
	if err := s.Storage.DeleteUser(ctx.Request.Context(), uid); err != nil {
		respondStorageError(ctx, err)
		return
	}
	log.Info().Str("uid", uid).Msg("user deleted")
	message(ctx, http.StatusOK, "User deleted successfully")
}
