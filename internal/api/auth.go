package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"vitrina/internal/store"
)

const tokenTTL = 24 * time.Hour

// POST /api/auth/login {email, password} → {token, user}
func LoginHandler(d *Deps) gin.HandlerFunc {
	type req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	return func(c *gin.Context) {
		var body req
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		rec, err := d.Docs.FindOne(c.Request.Context(), colUsers, "email", strings.TrimSpace(body.Email))
		if err != nil {
			// одинаковый ответ для неизвестного email и неверного пароля
			fail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		hash := docString(rec.Data, "passwordHash")
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(body.Password)) != nil {
			fail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		now := time.Now()
		claims := jwt.MapClaims{
			"sub":  rec.ID,
			"role": docString(rec.Data, "role"),
			"iat":  now.Unix(),
			"exp":  now.Add(tokenTTL).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.JWTSecret)
		if err != nil {
			fail(c, http.StatusInternalServerError, "token signing failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":    rec.ID,
				"email": docString(rec.Data, "email"),
				"name":  docString(rec.Data, "name"),
				"role":  docString(rec.Data, "role"),
			},
		})
	}
}

// AuthRequired проверяет Bearer-токен и кладёт userID/userRole в контекст.
func AuthRequired(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(raw, "Bearer ") {
			fail(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return d.JWTSecret, nil
		})
		if err != nil || !tok.Valid {
			fail(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			fail(c, http.StatusUnauthorized, "invalid token claims")
			c.Abort()
			return
		}
		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		c.Set("userID", sub)
		c.Set("userRole", role)
		c.Next()
	}
}

// EnsureAdmin создаёт стартового админа, если пользователей ещё нет.
// Пароль одноразово печатается в лог.
func EnsureAdmin(ctx context.Context, docs store.Store, log zerolog.Logger) error {
	_, total, err := docs.List(ctx, colUsers, store.Query{Limit: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	password := hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = docs.Insert(ctx, colUsers, map[string]any{
		"email":        "admin@vitrina.local",
		"name":         "Administrator",
		"role":         "admin",
		"passwordHash": string(hash),
	})
	if err != nil {
		return err
	}
	log.Info().Str("email", "admin@vitrina.local").Str("password", password).
		Msg("seeded initial admin user")
	return nil
}
