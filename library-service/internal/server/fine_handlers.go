package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/lms/library-service/internal/fine"
)

func (s *Server) Fine(ctx *gin.Context) {
	rawIssue, rawExpiry := ctx.Query("issueDate"), ctx.Query("expiryDate")
	if rawIssue == "" || rawExpiry == "" {
		respondError(ctx, http.StatusBadRequest, "issueDate and expiryDate are required query parameters")
		return
	}
	issue, err := parseDate(rawIssue)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	expiry, err := parseDate(rawExpiry)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := s.Fines.Fine(issue, expiry)
	if err != nil {
		if errors.Is(err, fine.ErrIssueInFuture) {
			respondError(ctx, http.StatusBadRequest, err.Error())
			return
		}
		respondError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"fine": amount})
}
