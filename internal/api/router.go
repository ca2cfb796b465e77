package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter собирает публичную и админскую поверхности API.
// Админская часть целиком за AuthRequired.
func NewRouter(d *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(d))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pub := r.Group("/api")
	{
		pub.POST("/auth/login", LoginHandler(d))

		pub.GET("/pages", PageListHandler(d, true))
		pub.GET("/pages/:slug/content", PublicContentHandler(d))

		pub.GET("/blogs", BlogListHandler(d, true))
		pub.GET("/blogs/:slug", BlogGetHandler(d, true))

		pub.POST("/forms/:id/submit", FormSubmitHandler(d))

		pub.POST("/newsletter/subscribe", SubscribeHandler(d))
		pub.GET("/newsletter/unsubscribe/:token", UnsubscribeHandler(d))

		pub.GET("/media/:id/file", MediaFileHandler(d))
	}

	adm := r.Group("/api/admin", AuthRequired(d))
	{
		adm.GET("/field-types", FieldTypesHandler(d))

		adm.GET("/component-types", TypeListHandler(d))
		adm.POST("/component-types", TypeCreateHandler(d))
		adm.GET("/component-types/:name", TypeGetHandler(d))
		adm.PUT("/component-types/:name", TypeUpdateHandler(d))
		adm.DELETE("/component-types/:name", TypeDeactivateHandler(d))

		adm.GET("/pages", PageListHandler(d, false))
		adm.POST("/pages", PageCreateHandler(d))
		adm.GET("/pages/:slug", PageGetHandler(d))
		adm.GET("/pages/:slug/content", AdminContentHandler(d))
		adm.PATCH("/pages/id/:id", PageUpdateHandler(d))
		adm.DELETE("/pages/id/:id", PageDeleteHandler(d))
		adm.POST("/pages/id/:id/restore", PageRestoreHandler(d))

		adm.GET("/layouts", LayoutListHandler(d))
		adm.POST("/layouts", LayoutCreateHandler(d))
		adm.GET("/layouts/:id", LayoutGetHandler(d))
		adm.PUT("/layouts/:id", LayoutSaveHandler(d))
		adm.DELETE("/layouts/:id", LayoutDeleteHandler(d))
		adm.POST("/layouts/:id/components", ComponentCreateHandler(d))

		adm.GET("/components/:id", ComponentGetHandler(d))
		adm.PATCH("/components/:id", ComponentPatchHandler(d))
		adm.POST("/components/reorder", ComponentReorderHandler(d))
		adm.DELETE("/components/:id", ComponentDeleteHandler(d))
		adm.POST("/components/:id/restore", ComponentRestoreHandler(d))

		adm.GET("/blogs", BlogListHandler(d, false))
		adm.POST("/blogs", BlogCreateHandler(d))
		adm.GET("/blogs/:slug", BlogGetHandler(d, false))
		adm.PATCH("/blogs/id/:id", BlogUpdateHandler(d))
		adm.DELETE("/blogs/id/:id", BlogDeleteHandler(d))

		adm.GET("/forms", FormListHandler(d))
		adm.POST("/forms", FormCreateHandler(d))
		adm.GET("/forms/:id", FormGetHandler(d))
		adm.PATCH("/forms/:id", FormUpdateHandler(d))
		adm.DELETE("/forms/:id", FormDeleteHandler(d))

		adm.GET("/leads", LeadListHandler(d))
		adm.GET("/leads/:id", LeadGetHandler(d))
		adm.PATCH("/leads/:id", LeadUpdateHandler(d))
		adm.DELETE("/leads/:id", LeadDeleteHandler(d))

		adm.GET("/media", MediaListHandler(d))
		adm.POST("/media", MediaUploadHandler(d))
		adm.DELETE("/media/:id", MediaDeleteHandler(d))

		adm.GET("/newsletters", NewsletterListHandler(d))
		adm.POST("/newsletters", NewsletterCreateHandler(d))
		adm.PATCH("/newsletters/:id", NewsletterUpdateHandler(d))
		adm.POST("/newsletters/:id/schedule", NewsletterScheduleHandler(d))
		adm.DELETE("/newsletters/:id", NewsletterDeleteHandler(d))
		adm.GET("/subscribers", SubscriberListHandler(d))

		adm.GET("/notifications", NotificationListHandler(d))
		adm.POST("/notifications/:id/read", NotificationReadHandler(d))

		adm.GET("/users", UserListHandler(d))
		adm.POST("/users", UserCreateHandler(d))
		adm.GET("/users/:id", UserGetHandler(d))
		adm.PATCH("/users/:id", UserUpdateHandler(d))
		adm.DELETE("/users/:id", UserDeleteHandler(d))
	}

	return r
}

// requestLog — доступ-лог через zerolog.
func requestLog(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		d.Log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
