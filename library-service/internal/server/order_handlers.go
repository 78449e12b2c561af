package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/azaliaz/lms/library-service/internal/domain/consts"
	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/logger"
)

type orderRequest struct {
	BookID   string `json:"bookId" validate:"required"`
	OrderNo  string `json:"orderNo"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Date     string `json:"date"`
}

type orderPatch struct {
	Quantity *int    `json:"quantity" validate:"omitnil,gte=1"`
	Date     *string `json:"date" validate:"omitnil,min=1"`
}

// AllOrders returns every order to admins and only the caller's own to users.
func (s *Server) AllOrders(ctx *gin.Context) {
	page, err := pageFromQuery(ctx)
	if err != nil {
		respondError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	filter := models.OrderFilter{Page: page}
	if ctx.GetString(consts.RoleKey) != models.RoleAdmin {
		filter.UserID = ctx.GetString(consts.UIDKey)
	}
	orders, err := s.Storage.GetOrders(ctx.Request.Context(), filter)
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, orders)
}

func (s *Server) OrderInfo(ctx *gin.Context) {
	order, err := s.Storage.GetOrder(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	if !adminOrSelf(ctx, order.UserID) {
		respondError(ctx, http.StatusForbidden, "Forbidden - Access denied")
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// PlaceOrder books an order for the caller. Storage checks the book and the
// user and writes the order in one step.
func (s *Server) PlaceOrder(ctx *gin.Context) {
	log := logger.Get()
	var req orderRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	order := models.Order{
		OrderNo:  req.OrderNo,
		BookID:   req.BookID,
		UserID:   ctx.GetString(consts.UIDKey),
		Quantity: req.Quantity,
		Date:     time.Now().UTC(),
	}
	if order.OrderNo == "" {
		order.OrderNo = uuid.NewString()
	}
	if order.Quantity == 0 {
		order.Quantity = 1
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, err.Error())
			return
		}
		order.Date = date
	}

	order, err := s.Storage.SaveOrder(ctx.Request.Context(), order)
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	log.Info().Str("oid", order.OID).Str("uid", order.UserID).Str("bid", order.BookID).Msg("order placed")
	ctx.JSON(http.StatusCreated, order)
}

func (s *Server) UpdateOrder(ctx *gin.Context) {
	var req orderPatch
	if !s.bindJSON(ctx, &req) {
		return
	}
	upd := models.OrderUpdate{Quantity: req.Quantity}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			respondError(ctx, http.StatusBadRequest, err.Error())
			return
		}
		upd.Date = &date
	}
	order, err := s.Storage.UpdateOrder(ctx.Request.Context(), ctx.Param("id"), upd)
	if err != nil {
		respondStorageError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

func (s *Server) RemoveOrder(ctx *gin.Context) {
	if err := s.Storage.DeleteOrder(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondStorageError(ctx, err)
		return
	}
	message(ctx, http.StatusOK, "Order deleted successfully")
}
