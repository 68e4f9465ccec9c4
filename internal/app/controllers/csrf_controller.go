package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/middleware"
)

// CSRFController issues CSRF tokens
type CSRFController struct {
	secureCookie bool
}

// NewCSRFController creates a new CSRFController
func NewCSRFController(secureCookie bool) *CSRFController {
	return &CSRFController{secureCookie: secureCookie}
}

// GetToken godoc
// @Summary Get a CSRF token
// @Description Issues a token and sets it in the csrftoken cookie. Send it back in X-CSRFToken on unsafe requests.
// @Tags csrf
// @Produce json
// @Success 200 {object} dto.CSRFResponse
// @Router /csrf [get]
func (c *CSRFController) GetToken(ctx *gin.Context) {
	token := middleware.IssueCSRFToken(ctx, c.secureCookie)
	ctx.JSON(http.StatusOK, dto.CSRFResponse{CSRFToken: token})
}
