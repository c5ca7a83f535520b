package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HomeController serves the static landing page
type HomeController struct {
	bucket        string
	publicBaseURL string
}

// NewHomeController creates a new home controller
func NewHomeController(bucket, publicBaseURL string) *HomeController {
	return &HomeController{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Home renders the informational page. It never touches the backend.
func (c *HomeController) Home(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "home.html", gin.H{
		"Bucket":  c.bucket,
		"BaseURL": baseURL(ctx, c.publicBaseURL),
	})
}
