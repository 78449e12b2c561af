package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/logger"
)

type bookRequest struct {
	Title    string `json:"title" validate:"required"`
	Author   string `json:"author" validate:"required"`
	Genre    string `json:"genre" validate:"required"`
	Year     int    `json:"year" validate:"gte=0"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

func (r bookRequest) book() models.Book {
	return models.Book{Title: r.Title, Author: r.Author, Genre: r.Genre, Year: r.Year, Quantity: r.Quantity}
}

type bookPatch struct {
	Title    *string `json:"title" validate:"omitnil,min=1"`
	Author   *string `json:"author" validate:"omitnil,min=1"`
	Genre    *string `json:"genre" validate:"omitnil,min=1"`
	Year     *int    `json:"year" validate:"omitnil,gte=0"`
	Quantity *int    `json:"quantity" validate:"omitnil,gte=0"`
}

// AllBooks lists books matching the exact genre, title, author and year given.
func (s *Server) AllBooks(ctx *gin.Context) {
	page, err := pageFromQuery(ctx)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	filter := models.BookFilter{
		Genre:  ctx.Query("genre"),
		Title:  ctx.Query("title"),
		Author: ctx.Query("author"),
		Page:   page,
	}
	if raw := ctx.Query("year"); raw != "" {
		if filter.Year, err = strconv.Atoi(raw); err != nil {
			respondError(ctx, http.StatusBadRequest, "year must be an integer")
			return
		}
	}
	books, err := s.Storage.GetBooks(ctx.Request.Context(), filter)
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, books)
}

func (s *Server) BookInfo(ctx *gin.Context) {
	book, err := s.Storage.GetBook(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, book)
}

func (s *Server) AddBook(ctx *gin.Context) {
	log := logger.Get()
	var req bookRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	book, err := s.Storage.SaveBook(ctx.Request.Context(), req.book())
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	log.Info().Str("bid", book.BID).Msg("book added")
	ctx.JSON(http.StatusCreated, book)
}

// ReplaceBook overwrites every field of the book.
func (s *Server) ReplaceBook(ctx *gin.Context) {
	var req bookRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	book, err := s.Storage.UpdateBook(ctx.Request.Context(), ctx.Param("id"), models.BookUpdate{
		Title:    &req.Title,
		Author:   &req.Author,
		Genre:    &req.Genre,
		Year:     &req.Year,
		Quantity: &req.Quantity,
	})
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, book)
}

func (s *Server) UpdateBook(ctx *gin.Context) {
	var req bookPatch
	if !s.bindJSON(ctx, &req) {
		return
	}
	book, err := s.Storage.UpdateBook(ctx.Request.Context(), ctx.Param("id"), models.BookUpdate{
		Title:    req.Title,
		Author:   req.Author,
		Genre:    req.Genre,
		Year:     req.Year,
		Quantity: req.Quantity,
	})
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, book)
}

func (s *Server) RemoveBook(ctx *gin.Context) {
	if err := s.Storage.DeleteBook(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondStorageError(ctx, err)
		return
	}
	message(ctx, http.StatusOK, "Book deleted successfully")
}
