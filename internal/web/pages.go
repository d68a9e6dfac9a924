package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the bundled page templates
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// Register installs the page templates and the gated page routes on router
func Register(router *gin.Engine, verifier Verifier) error {
	tmpl, err := Templates()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)

	pages := router.Group("", PageGate(verifier, DefaultPages))
	pages.GET("/", render("index.html", "Welcome"))
	pages.GET("/login", render("login.html", "Sign in"))
	pages.GET("/register", render("register.html", "Create account"))
	pages.GET("/dashboard", render("dashboard.html", "Dashboard"))
	return nil
}

func render(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := gin.H{
			"Title":    title,
			"Redirect": SafeRedirect(c.Query("redirect")),
		}
		if claims := claimsFrom(c); claims != nil {
			data["Email"] = claims.Email
		}
		c.Header("Cache-Control", "no-store")
		c.HTML(http.StatusOK, name, data)
	}
}
