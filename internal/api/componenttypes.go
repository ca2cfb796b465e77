package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitrina/internal/schema"
)

type typePayload struct {
	Name   string                   `json:"name"`
	Fields []schema.FieldDefinition `json:"fields"`
	Tags   []string                 `json:"tags"`
}

// GET /api/admin/field-types
func FieldTypesHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Reg.Kinds())
	}
}

// GET /api/admin/component-types
func TypeListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Types.List(c.Request.Context())
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// GET /api/admin/component-types/:name
func TypeGetHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ct, err := d.Types.Get(c.Request.Context(), c.Param("name"))
		if err != nil {
			if errors.Is(err, schema.ErrNotFound) {
				failNotFound(c, "Component type")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, ct)
	}
}

// POST /api/admin/component-types
func TypeCreateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body typePayload
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		ct, ferrs, err := d.Types.Define(c.Request.Context(), body.Name, body.Fields, body.Tags)
		if err != nil {
			if errors.Is(err, schema.ErrDuplicateName) {
				fail(c, http.StatusConflict, "Component type name already exists",
					ferr(errDuplicateName, "name", "name differs only in case or matches an existing type"))
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if len(ferrs) > 0 {
			fail(c, http.StatusBadRequest, "Schema validation failed", ferrs...)
			return
		}
		c.JSON(http.StatusCreated, ct)
	}
}

// PUT /api/admin/component-types/:name — замена fields, версия++,
// журнал правок (кап 10).
func TypeUpdateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body typePayload
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "Invalid JSON")
			return
		}
		ct, ferrs, err := d.Types.Update(c.Request.Context(), c.Param("name"), body.Fields)
		if err != nil {
			if errors.Is(err, schema.ErrNotFound) {
				failNotFound(c, "Component type")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if len(ferrs) > 0 {
			fail(c, http.StatusBadRequest, "Schema validation failed", ferrs...)
			return
		}
		c.JSON(http.StatusOK, ct)
	}
}

// DELETE /api/admin/component-types/:name — только деактивация.
func TypeDeactivateHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := d.Types.Deactivate(c.Request.Context(), c.Param("name"))
		if err != nil {
			if errors.Is(err, schema.ErrNotFound) {
				failNotFound(c, "Component type")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Status(http.StatusNoContent)
	}
}
