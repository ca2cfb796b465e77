package api

import (
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"vitrina/internal/store"
)

var userRoles = map[string]bool{"admin": true, "editor": true}

type userPayload struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// userView — пользователь без passwordHash.
func userView(rec *store.Record) map[string]any {
	flat := store.Flatten(rec)
	delete(flat, "passwordHash")
	return flat
}

// POST /api/admin/users
func UserCreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body userPayload
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
		if len(body.Password) < 8 {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr("password_weak", "password", "password must be at least 8 characters"))
			return
		}
		role := body.Role
		if role == "" {
			role = "editor"
		}
		if !userRoles[role] {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr("role_invalid", "role", "role must be admin|editor"))
			return
		}
		ctx := c.Request.Context()
		if _, err := d.Docs.FindOne(ctx, colUsers, "email", email); err == nil {
			fail(c, http.StatusConflict, "User already exists",
				ferr(errDuplicateName, "email", "email must be unique"))
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		rec, err := d.Docs.Insert(ctx, colUsers, map[string]any{
			"email":        email,
			"name":         body.Name,
			"role":         role,
			"passwordHash": string(hash),
			"isActive":     true,
		})
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, userView(rec))
	}
}

// GET /api/admin/users
func UserListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, total, err := d.Docs.List(c.Request.Context(), colUsers, parseListParams(c.Request.URL.Query()))
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]map[string]any, 0, len(recs))
		for _, rec := range recs {
			out = append(out, userView(rec))
		}
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/admin/users/:id
func UserGetHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Docs.Get(c.Request.Context(), colUsers, c.Param("id"))
		if err != nil {
			failNotFound(c, "User")
			return
		}
		c.JSON(http.StatusOK, userView(rec))
	}
}

// PATCH /api/admin/users/:id — смена имени/роли/пароля.
func UserUpdateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body userPayload
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		patch := map[string]any{}
		if body.Name != "" {
			patch["name"] = body.Name
		}
		if body.Role != "" {
			if !userRoles[body.Role] {
				fail(c, http.StatusBadRequest, "Validation failed",
					ferr("role_invalid", "role", "role must be admin|editor"))
				return
			}
			patch["role"] = body.Role
		}
		if body.Password != "" {
			if len(body.Password) < 8 {
				fail(c, http.StatusBadRequest, "Validation failed",
					ferr("password_weak", "password", "password must be at least 8 characters"))
				return
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
			if err != nil {
				fail(c, http.StatusInternalServerError, err.Error())
				return
			}
			patch["passwordHash"] = string(hash)
		}
		rec, err := d.Docs.Patch(c.Request.Context(), colUsers, c.Param("id"), patch)
		if err != nil {
			failNotFound(c, "User")
			return
		}
		c.JSON(http.StatusOK, userView(rec))
	}
}

// DELETE /api/admin/users/:id — себя удалить нельзя.
func UserDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == c.GetString("userID") {
			fail(c, http.StatusConflict, "Cannot delete own account")
			return
		}
		if err := d.Docs.SoftDelete(c.Request.Context(), colUsers, id); err != nil {
			failNotFound(c, "User")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
