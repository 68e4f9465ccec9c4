package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/libris/internal/app/controllers"
	"github.com/yigit/libris/internal/app/models"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/middleware"
)

// Controllers groups every HTTP controller
type Controllers struct {
	Auth        *controllers.AuthController
	Books       *controllers.BookController
	Circulation *controllers.CirculationController
	Users       *controllers.UserController
	CSRF        *controllers.CSRFController
}

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	ctrls Controllers,
	authMiddleware *middleware.AuthMiddleware,
	csrfEnabled bool,
) {
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.SuccessResponse{Message: "pong"})
	})

	// API version group
	v1 := router.Group("/api/v1")
	v1.Use(middleware.CSRFProtect(csrfEnabled))

	v1.GET("/csrf", ctrls.CSRF.GetToken)

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", ctrls.Auth.Register)
		auth.POST("/login", ctrls.Auth.Login)
		auth.POST("/refresh", ctrls.Auth.RefreshToken)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	authenticated.POST("/auth/logout", ctrls.Auth.Logout)

	// Circulation
	loanBody := middleware.ValidateRequest(func() *dto.LoanRequest { return &dto.LoanRequest{} })
	authenticated.POST("/borrow", loanBody, ctrls.Circulation.Borrow)
	authenticated.POST("/return", loanBody, ctrls.Circulation.Return)

	// Catalog
	books := authenticated.Group("/books")
	{
		books.GET("", ctrls.Books.ListBooks)
		books.GET("/borrowed", ctrls.Circulation.ListBorrowed)
		books.GET("/:id", ctrls.Books.GetBook)

		staff := books.Group("")
		staff.Use(authMiddleware.RoleRequired(models.RoleAdmin, models.RoleLibrarian))
		{
			staff.POST("", ctrls.Books.CreateBook)
			staff.PUT("/:id", ctrls.Books.UpdateBook)
			staff.PATCH("/:id", ctrls.Books.UpdateBook)
			staff.DELETE("/:id", ctrls.Books.DeleteBook)
			staff.POST("/:id/image", ctrls.Books.UploadCover)
		}
	}

	// Users
	users := authenticated.Group("/users")
	{
		users.GET("/me", ctrls.Users.GetUser)
		users.PATCH("/me", ctrls.Users.UpdateUser)
		users.POST("/me/avatar", ctrls.Users.UploadAvatar)

		// self-or-admin, checked by the service
		users.GET("/:id", ctrls.Users.GetUser)
		users.PUT("/:id", ctrls.Users.UpdateUser)
		users.PATCH("/:id", ctrls.Users.UpdateUser)
		users.POST("/:id/avatar", ctrls.Users.UploadAvatar)

		admin := users.Group("")
		admin.Use(authMiddleware.RoleRequired(models.RoleAdmin))
		{
			admin.GET("", ctrls.Users.ListUsers)
			admin.POST("", ctrls.Users.CreateUser)
			admin.DELETE("/:id", ctrls.Users.DeleteUser)
			admin.PATCH("/:id/role", ctrls.Users.UpdateRole)
		}
	}
}
