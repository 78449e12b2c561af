package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/logger"
	storerrros "github.com/azaliaz/lms/library-service/internal/storage/errors"
)

var errBadPage = errors.New("page and limit must be positive integers")

func respondError(ctx *gin.Context, status int, msg string) {
	ctx.JSON(status, gin.H{"error": msg})
}

// respondStorageError maps storage sentinels to statuses. Anything else is
// a 500 carrying the raw message.
func respondStorageError(ctx *gin.Context, err error) {
	log := logger.Get()
	switch {
	case errors.Is(err, storerrros.ErrUserNotFound),
		errors.Is(err, storerrros.ErrBookNoExist),
		errors.Is(err, storerrros.ErrAuthorNoExist),
		errors.Is(err, storerrros.ErrOrderNoExist):
		respondError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, storerrros.ErrUserExists),
		errors.Is(err, storerrros.ErrOrderExists):
		respondError(ctx, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("storage call failed")
		respondError(ctx, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) bindJSON(ctx *gin.Context, req any) bool {
	log := logger.Get()
	if err := ctx.ShouldBindJSON(req); err != nil {
		log.Debug().Err(err).Msg("unmarshal body failed")
		respondError(ctx, http.StatusBadRequest, "incorrectly entered data")
		return false
	}
	if err := s.valid.Struct(req); err != nil {
		respondError(ctx, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "bcryptlen":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %d bytes", fe.Field(), maxPasswordBytes))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// pageFromQuery reads page and limit. The window applies only when limit is set.
func pageFromQuery(ctx *gin.Context) (models.Page, error) {
	var page models.Page
	if raw, ok := ctx.GetQuery("page"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return page, errBadPage
		}
		page.Page = n
	}
	if raw, ok := ctx.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return page, errBadPage
		}
		page.Limit = n
		if page.Page == 0 {
			page.Page = 1
		}
	}
	return page, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly}

// parseDate accepts RFC 3339 or a zone-less timestamp or date taken as UTC.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func message(ctx *gin.Context, status int, msg string) {
	ctx.JSON(status, gin.H{"message": msg})
}
