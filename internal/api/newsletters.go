package api

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vitrina/internal/store"
)

type newsletterPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// POST /api/admin/newsletters
func NewsletterCreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body newsletterPayload
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if strings.TrimSpace(body.Subject) == "" {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr(errRequired, "subject", "subject is required"))
			return
		}
		rec, err := d.Docs.Insert(c.Request.Context(), colNewsletters, map[string]any{
			"subject": body.Subject,
			"body":    body.Body,
			"status":  "draft", // draft -> scheduled -> sent
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, store.Flatten(rec))
	}
}

// GET /api/admin/newsletters
func NewsletterListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := parseListParams(c.Request.URL.Query())
		if len(q.Sort) == 0 {
			q.Sort = []store.SortKey{{Field: "created_at", Desc: true}}
		}
		recs, total, err := d.Docs.List(c.Request.Context(), colNewsletters, q)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		flatRecords(c, recs, total)
	}
}

// PATCH /api/admin/newsletters/:id — правка черновика. Отправленную
// рассылку менять нельзя.
func NewsletterUpdateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cur, err := d.Docs.Get(ctx, colNewsletters, c.Param("id"))
		if err != nil {
			failNotFound(c, "Newsletter")
			return
		}
		if docString(cur.Data, "status") == "sent" {
			fail(c, http.StatusConflict, "Newsletter already sent")
			return
		}
		var body newsletterPayload
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		patch := map[string]any{}
		if strings.TrimSpace(body.Subject) != "" {
			patch["subject"] = body.Subject
		}
		if body.Body != "" {
			patch["body"] = body.Body
		}
		rec, err := d.Docs.Patch(ctx, colNewsletters, cur.ID, patch)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// POST /api/admin/newsletters/:id/schedule {scheduledAt?: RFC3339}
// Без scheduledAt рассылка уходит ближайшим тиком планировщика.
func NewsletterScheduleHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		cur, err := d.Docs.Get(ctx, colNewsletters, c.Param("id"))
		if err != nil {
			failNotFound(c, "Newsletter")
			return
		}
		if docString(cur.Data, "status") == "sent" {
			fail(c, http.StatusConflict, "Newsletter already sent")
			return
		}
		var body struct {
			ScheduledAt string `json:"scheduledAt"`
		}
		_ = c.ShouldBindJSON(&body) // пустое тело допустимо
		at := time.Now().UTC()
		if body.ScheduledAt != "" {
			parsed, err := time.Parse(time.RFC3339, body.ScheduledAt)
			if err != nil {
				fail(c, http.StatusBadRequest, "Validation failed",
					ferr("time_invalid", "scheduledAt", "scheduledAt must be RFC3339"))
				return
			}
			at = parsed.UTC()
		}
		rec, err := d.Docs.Patch(ctx, colNewsletters, cur.ID, map[string]any{
			"status":      "scheduled",
			"scheduledAt": at.Format(time.RFC3339),
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, store.Flatten(rec))
	}
}

// DELETE /api/admin/newsletters/:id
func NewsletterDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Docs.SoftDelete(c.Request.Context(), colNewsletters, c.Param("id")); err != nil {
			failNotFound(c, "Newsletter")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/newsletter/subscribe {email} — публичная подписка.
// Повторная подписка того же адреса (без учёта регистра) идемпотентна.
func SubscribeHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		addr, err := mail.ParseAddress(strings.TrimSpace(body.Email))
		if err != nil {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr("email_invalid", "email", "invalid email address"))
			return
		}
		email := strings.ToLower(addr.Address)

		ctx := c.Request.Context()
		if _, err := d.Docs.FindOne(ctx, colSubscribers, "email", email); err == nil {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Already subscribed"})
			return
		}
		_, err = d.Docs.Insert(ctx, colSubscribers, map[string]any{
			"email": email,
			"token": uuid.NewString(), // для отписки без авторизации
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Subscribed"})
	}
}

// GET /api/newsletter/unsubscribe/:token
func UnsubscribeHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rec, err := d.Docs.FindOne(ctx, colSubscribers, "token", c.Param("token"))
		if err != nil {
			failNotFound(c, "Subscription")
			return
		}
		if err := d.Docs.SoftDelete(ctx, colSubscribers, rec.ID); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Unsubscribed"})
	}
}

// GET /api/admin/subscribers
func SubscriberListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, total, err := d.Docs.List(c.Request.Context(), colSubscribers, parseListParams(c.Request.URL.Query()))
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		flatRecords(c, recs, total)
	}
}

// GET /api/admin/notifications — уведомления текущего пользователя,
// непрочитанные первыми.
func NotificationListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := parseListParams(c.Request.URL.Query())
		q.Filters = map[string]any{"userRef": c.GetString("userID")}
		if len(q.Sort) == 0 {
			q.Sort = []store.SortKey{{Field: "read"}, {Field: "created_at", Desc: true}}
		}
		recs, total, err := d.Docs.List(c.Request.Context(), colNotifications, q)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		flatRecords(c, recs, total)
	}
}

// POST /api/admin/notifications/:id/read
func NotificationReadHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rec, err := d.Docs.Get(ctx, colNotifications, c.Param("id"))
		if err != nil || docString(rec.Data, "userRef") != c.GetString("userID") {
			failNotFound(c, "Notification")
			return
		}
		out, err := d.Docs.Patch(ctx, colNotifications, rec.ID, map[string]any{"read": true})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, store.Flatten(out))
	}
}
