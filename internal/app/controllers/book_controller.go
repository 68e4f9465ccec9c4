package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/middleware"
	"github.com/yigit/libris/internal/pkg/clock"
	"github.com/yigit/libris/internal/pkg/helpers"
)

// BookController handles catalog operations
type BookController struct {
	bookService *services.BookService
	clock       clock.Clock
}

// NewBookController creates a new BookController
func NewBookController(bookService *services.BookService, clk clock.Clock) *BookController {
	return &BookController{
		bookService: bookService,
		clock:       clk,
	}
}

// ListBooks godoc
// @Summary List books
// @Description Lists the catalog with filters, search, ordering and pagination. Borrower names are shown only to the borrower and to staff.
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category code" Enums(CK, CR, MY, SF, FAN, HIS, ROM, TXT)
// @Param condition query string false "Condition code" Enums(NW, GD, FR, PO)
// @Param language query string false "Language"
// @Param available query bool false "Availability"
// @Param search query string false "Substring of title, author or isbn"
// @Param ordering query string false "Sort key, prefix with - for descending" Enums(id, -id, title, -title, author, -author, publication_year, -publication_year, due_date, -due_date)
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse{items=[]dto.BookResponse}}
// @Failure 400 {object} dto.ErrorResponse "Invalid filter"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /books [get]
func (c *BookController) ListBooks(ctx *gin.Context) {
	viewer, ok := requireUser(ctx)
	if !ok {
		return
	}

	var query dto.BookListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		middleware.HandleBindingError(ctx, err)
		return
	}

	page, size := helpers.ParsePaginationParams(ctx)
	offset, limit := helpers.CalculateOffsetLimit(page, size)

	books, total, err := c.bookService.ListBooks(ctx.Request.Context(), &query, offset, limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	items := dto.NewBookResponses(books, viewer, clock.Today(c.clock))
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(helpers.NewPaginatedResponse(items, total, page, limit), ""))
}

// GetBook godoc
// @Summary Get a book
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.BookResponse}
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Router /books/{id} [get]
func (c *BookController) GetBook(ctx *gin.Context) {
	viewer, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	book, err := c.bookService.GetBook(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.NewBookResponse(book, viewer, clock.Today(c.clock)), ""))
}

// CreateBook godoc
// @Summary Add a book
// @Description Adds a copy to the catalog. Admins and librarians only.
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateBookRequest true "Book"
// @Success 201 {object} dto.APIResponse{data=dto.BookResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /books [post]
func (c *BookController) CreateBook(ctx *gin.Context) {
	actor, ok := requireUser(ctx)
	if !ok {
		return
	}

	var req dto.CreateBookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(ctx, err)
		return
	}

	book, err := c.bookService.CreateBook(ctx.Request.Context(), &req, actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.NewBookResponse(book, actor, clock.Today(c.clock)), "Book created successfully"))
}

// UpdateBook godoc
// @Summary Update a book
// @Description Partially updates catalog fields. Loan fields cannot be written. Admins and librarians only.
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID" Format(int64) minimum(1)
// @Param request body dto.UpdateBookRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.BookResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Router /books/{id} [patch]
func (c *BookController) UpdateBook(ctx *gin.Context) {
	actor, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	var req dto.UpdateBookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindingError(ctx, err)
		return
	}

	book, err := c.bookService.UpdateBook(ctx.Request.Context(), id, &req, actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.NewBookResponse(book, actor, clock.Today(c.clock)), "Book updated successfully"))
}

// DeleteBook godoc
// @Summary Delete a book
// @Tags books
// @Security BearerAuth
// @Param id path int true "Book ID" Format(int64) minimum(1)
// @Success 204 "Deleted"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Router /books/{id} [delete]
func (c *BookController) DeleteBook(ctx *gin.Context) {
	actor, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	if err := c.bookService.DeleteBook(ctx.Request.Context(), id, actor); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// UploadCover godoc
// @Summary Upload a cover image
// @Tags books
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID" Format(int64) minimum(1)
// @Param image formData file true "Cover image"
// @Success 200 {object} dto.APIResponse{data=dto.BookResponse}
// @Failure 400 {object} dto.ErrorResponse "Missing or unsupported image"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Router /books/{id}/image [post]
func (c *BookController) UploadCover(ctx *gin.Context) {
	actor, ok := requireUser(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "image file is required").WithField("image")
		ctx.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	book, err := c.bookService.UploadCover(ctx.Request.Context(), id, file, actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.NewBookResponse(book, actor, clock.Today(c.clock)), "Cover uploaded successfully"))
}
