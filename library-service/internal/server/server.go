package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/azaliaz/lms/library-service/internal/auth"
	"github.com/azaliaz/lms/library-service/internal/config"
	"github.com/azaliaz/lms/library-service/internal/domain/consts"
	"github.com/azaliaz/lms/library-service/internal/domain/models"
	"github.com/azaliaz/lms/library-service/internal/fine"
	"github.com/azaliaz/lms/library-service/internal/logger"
)

//go:generate mockgen -source=server.go -destination=./mocks/service_mock.go -package=mocks

const shutdownTimeout = 10 * time.Second

type Storage interface {
	SaveUser(ctx context.Context, user models.User) (models.User, error)
	ValidUser(ctx context.Context, creds models.Credentials) (models.User, error)
	GetUser(ctx context.Context, uid string) (models.User, error)
	GetUsers(ctx context.Context, page models.Page) ([]models.User, error)
	UpdateUser(ctx context.Context, uid string, upd models.UserUpdate) (models.User, error)
	DeleteUser(ctx context.Context, uid string) error

	SaveBook(ctx context.Context, book models.Book) (models.Book, error)
	GetBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	GetBook(ctx context.Context, bid string) (models.Book, error)
	UpdateBook(ctx context.Context, bid string, upd models.BookUpdate) (models.Book, error)
	DeleteBook(ctx context.Context, bid string) error

	SaveAuthor(ctx context.Context, author models.Author) (models.Author, error)
	GetAuthors(ctx context.Context, page models.Page) ([]models.Author, error)
	GetAuthor(ctx context.Context, aid string) (models.Author, error)
	UpdateAuthor(ctx context.Context, aid string, upd models.AuthorUpdate) (models.Author, error)
	DeleteAuthor(ctx context.Context, aid string) error

	SaveOrder(ctx context.Context, order models.Order) (models.Order, error)
	GetOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	GetOrder(ctx context.Context, oid string) (models.Order, error)
	UpdateOrder(ctx context.Context, oid string, upd models.OrderUpdate) (models.Order, error)
	DeleteOrder(ctx context.Context, oid string) error
}

type Server struct {
	serv     *http.Server
	valid    *validator.Validate
	Storage  Storage
	Tokens   *auth.Manager
	Fines    *fine.Calculator
	adminKey string
}

// bcrypt refuses longer passwords.
const maxPasswordBytes = 72

func New(cfg config.Config, stor Storage, tokens *auth.Manager) *Server {
	server := http.Server{ //nolint:gosec // timeouts are left to the reverse proxy
		Addr: cfg.Addr,
	}
	valid := validator.New()
	valid.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = valid.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return &Server{
		serv:     &server,
		valid:    valid,
		Storage:  stor,
		Tokens:   tokens,
		Fines:    fine.NewCalculator(cfg.FinePerDay, nil),
		adminKey: cfg.AdminKey,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Authorization"},
		MaxAge:        12 * time.Hour,
	}))
	router.GET("/", func(ctx *gin.Context) { ctx.String(http.StatusOK, "Hello") })

	api := router.Group("/api")
	api.POST("/register", s.Register)
	api.POST("/login", s.Login)
	api.POST("/logout", s.JWTAuthMiddleware(), s.Logout)
	api.GET("/fine", s.JWTAuthRoleMiddleware(models.RoleUser), s.Fine)

	books := api.Group("/books")
	{
		books.GET("", s.AllBooks)
		books.GET("/:id", s.BookInfo)
		books.POST("", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.AddBook)
		books.PUT("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.ReplaceBook)
		books.PATCH("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.UpdateBook)
		books.DELETE("/:id", s.JWTAuthMiddleware(), s.RemoveBook)
	}

	authors := api.Group("/authors", s.JWTAuthMiddleware())
	{
		authors.GET("", s.AllAuthors)
		authors.GET("/:id", s.AuthorInfo)
		authors.POST("", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.AddAuthor)
		authors.PUT("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.UpdateAuthor)
		authors.PATCH("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.UpdateAuthor)
		authors.DELETE("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.RemoveAuthor)
	}

	users := api.Group("/users", s.JWTAuthMiddleware())
	{
		users.GET("/me", s.UserInfo)
		users.GET("", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.AllUsers)
		users.POST("", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.AddUser)
		users.GET("/:id", s.UserByID)
		users.PUT("/:id", s.UpdateUser)
		users.PATCH("/:id", s.UpdateUser)
		users.DELETE("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.RemoveUser)
	}

	orders := api.Group("/orders", s.JWTAuthMiddleware())
	{
		orders.GET("", s.AllOrders)
		orders.GET("/:id", s.OrderInfo)
		orders.POST("", s.JWTAuthRoleMiddleware(models.RoleUser), s.PlaceOrder)
		orders.PUT("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.UpdateOrder)
		orders.PATCH("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.UpdateOrder)
		orders.DELETE("/:id", s.JWTAuthRoleMiddleware(models.RoleAdmin), s.RemoveOrder)
	}
	return router
}

// Run blocks until the server is shut down.
func (s *Server) Run(_ context.Context) error {
	log := logger.Get()
	s.serv.Handler = s.Router()
	log.Info().Str("host", s.serv.Addr).Msg("server started")
	if err := s.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ShutdownServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.serv.Shutdown(ctx)
}

// JWTAuthMiddleware lets any holder of a valid token through.
func (s *Server) JWTAuthMiddleware() gin.HandlerFunc {
	return s.JWTAuthRoleMiddleware()
}

// JWTAuthRoleMiddleware additionally requires one of roles when any are given.
// It reuses the identity already set by an outer gate on the same route.
func (s *Server) JWTAuthRoleMiddleware(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role := ctx.GetString(consts.RoleKey)
		if _, seen := ctx.Get(consts.UIDKey); !seen {
			claims, ok := s.authenticate(ctx)
			if !ok {
				return
			}
			ctx.Set(consts.UIDKey, claims.UserID)
			ctx.Set(consts.RoleKey, claims.Role)
			role = claims.Role
		}
		if len(roles) > 0 && !slices.Contains(roles, role) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": forbiddenMessage(roles)})
			return
		}
		ctx.Next()
	}
}

func (s *Server) authenticate(ctx *gin.Context) (*auth.Claims, bool) {
	log := logger.Get()
	tokenStr := strings.TrimSpace(ctx.GetHeader("Authorization"))
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	if tokenStr == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - No token provided"})
		return nil, false
	}
	claims, err := s.Tokens.Verify(ctx.Request.Context(), tokenStr)
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
		log.Debug().Err(err).Msg("token rejected")
		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden - Invalid token"})
		return nil, false
	case err != nil:
		log.Error().Err(err).Msg("validate jwt failed")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	ctx.Set(consts.TokenKey, tokenStr)
	return claims, true
}

func forbiddenMessage(roles []string) string {
	if len(roles) == 1 {
		switch roles[0] {
		case models.RoleAdmin:
			return "Forbidden - Admin access only"
		case models.RoleUser:
			return "Forbidden - User access only"
		}
	}
	return "Forbidden - Access denied"
}
