package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/lms/library-service/internal/domain/models"
)

type authorRequest struct {
	Name string `json:"name" validate:"required"`
	Bio  string `json:"bio"`
}

type authorPatch struct {
	Name *string `json:"name" validate:"omitnil,min=1"`
	Bio  *string `json:"bio"`
}

func (s *Server) AllAuthors(ctx *gin.Context) {
	page, err := pageFromQuery(ctx)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	authors, err := s.Storage.GetAuthors(ctx.Request.Context(), page)
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, authors)
}

func (s *Server) AuthorInfo(ctx *gin.Context) {
	author, err := s.Storage.GetAuthor(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, author)
}

func (s *Server) AddAuthor(ctx *gin.Context) {
	var req authorRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	author, err := s.Storage.SaveAuthor(ctx.Request.Context(), models.Author{Name: req.Name, Bio: req.Bio})
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, author)
}

func (s *Server) UpdateAuthor(ctx *gin.Context) {
	var req authorPatch
	if !s.bindJSON(ctx, &req) {
		return
	}
	author, err := s.Storage.UpdateAuthor(ctx.Request.Context(), ctx.Param("id"), models.AuthorUpdate{
		Name: req.Name,
		Bio:  req.Bio,
	})
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, author)
}

func (s *Server) RemoveAuthor(ctx *gin.Context) {
	if err := s.Storage.DeleteAuthor(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondStorageError(ctx, err)
		return
	}
	message(ctx, http.StatusOK, "Author deleted successfully")
}
