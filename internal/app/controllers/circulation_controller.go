package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/middleware"
)

// CirculationController handles borrowing and returning
type CirculationController struct {
	circulation *services.CirculationService
}

// NewCirculationController creates a new CirculationController
func NewCirculationController(circulation *services.CirculationService) *CirculationController {
	return &CirculationController{circulation: circulation}
}

// Borrow godoc
// @Summary Borrow a book
// @Description Checks a book out to the caller for 14 days. A user may hold at most 3 books.
// @Tags circulation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LoanRequest true "Book to borrow"
// @Success 200 {object} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse "Book unavailable, borrow limit reached or missing book_id"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Router /borrow [post]
func (c *CirculationController) Borrow(ctx *gin.Context) {
	actor, ok := requireUser(ctx)
	if !ok {
		return
	}
	req, ok := middleware.ValidatedBody[dto.LoanRequest](ctx)
	if !ok {
		return
	}

	book, err := c.circulation.Borrow(ctx.Request.Context(), req.BookID, actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.LoanResponse{
		Message: fmt.Sprintf("You have successfully borrowed '%s'. It is due on %s.",
			book.Title, book.DueDate.Format("2006-01-02")),
		Book: dto.NewBookResponse(book, actor, c.circulation.Today()),
	})
}

// Return godoc
// @Summary Return a book
// @Description Puts a book back on the shelf. The borrower, librarians and admins may return a book.
// @Tags circulation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LoanRequest true "Book to return"
// @Success 200 {object} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse "Book already available or missing book_id"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Caller did not borrow this book"
// @Failure 404 {object} dto.ErrorResponse "Book not found"
// @Router /return [post]
func (c *CirculationController) Return(ctx *gin.Context) {
	actor, ok := requireUser(ctx)
	if !ok {
		return
	}
	req, ok := middleware.ValidatedBody[dto.LoanRequest](ctx)
	if !ok {
		return
	}

	book, err := c.circulation.Return(ctx.Request.Context(), req.BookID, actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.LoanResponse{
		Message: fmt.Sprintf("You have successfully returned '%s'.", book.Title),
		Book:    dto.NewBookResponse(book, actor, c.circulation.Today()),
	})
}

// ListBorrowed godoc
// @Summary List borrowed books
// @Description Users get their own loans; librarians and admins get every loan grouped by borrower.
// @Tags circulation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.MyBorrowedBooksResponse "For users"
// @Success 200 {object} dto.BorrowedByUserResponse "For librarians and admins"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /books/borrowed [get]
func (c *CirculationController) ListBorrowed(ctx *gin.Context) {
	actor, ok := requireUser(ctx)
	if !ok {
		return
	}

	result, err := c.circulation.ListBorrowed(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	today := c.circulation.Today()
	if !result.Grouped {
		ctx.JSON(http.StatusOK, dto.MyBorrowedBooksResponse{
			MyBorrowedBooks: dto.NewBookResponses(result.Own, actor, today),
		})
		return
	}

	groups := make([]dto.BorrowerGroup, 0, len(result.Groups))
	for _, g := range result.Groups {
		groups = append(groups, dto.BorrowerGroup{
			BorrowerID:   g.BorrowerID,
			BorrowerName: g.BorrowerName,
			Books:        dto.NewBookResponses(g.Books, actor, today),
		})
	}
	ctx.JSON(http.StatusOK, dto.BorrowedByUserResponse{BorrowedBooksByUser: groups})
}
