package api

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vitrina/internal/store"
)

const maxUploadBytes = 20 << 20 // 20 MB

// Допустимые типы загрузки. Исполняемое и скриптовое не принимаем.
var mediaTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

const thumbWidth = 320

// POST /api/admin/media — multipart upload, поле file. Файл кладётся
// в FilesRoot/yyyy/mm/<uuid><ext>, для растровых картинок рядом
// пишется миниатюра.
func MediaUploadHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			fail(c, http.StatusBadRequest, "Validation failed",
				ferr(errRequired, "file", "multipart field 'file' is required"))
			return
		}
		if fh.Size > maxUploadBytes {
			fail(c, http.StatusRequestEntityTooLarge, "File too large",
				ferr("file_too_large", "file", fmt.Sprintf("max upload size is %d bytes", maxUploadBytes)))
			return
		}

		src, err := fh.Open()
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		defer src.Close()

		// тип определяем по содержимому, заголовку клиента не верим
		head := make([]byte, 512)
		n, _ := io.ReadFull(src, head)
		contentType := http.DetectContentType(head[:n])
		ext, ok := mediaTypes[contentType]
		if !ok {
			fail(c, http.StatusUnsupportedMediaType, "Unsupported media type",
				ferr("media_type", "file", contentType+" is not allowed"))
			return
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}

		now := time.Now().UTC()
		rel := filepath.Join(now.Format("2006"), now.Format("01"), uuid.NewString()+ext)
		abs := filepath.Join(d.FilesRoot, rel)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}

		dst, err := os.Create(abs)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		hash := sha256.New()
		size, err := io.Copy(io.MultiWriter(dst, hash), src)
		dst.Close()
		if err != nil {
			os.Remove(abs)
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}

		doc := map[string]any{
			"fileName":    fh.Filename,
			"path":        filepath.ToSlash(rel),
			"contentType": contentType,
			"size":        size,
			"sha256":      hex.EncodeToString(hash.Sum(nil)),
		}

		if strings.HasPrefix(contentType, "image/") && contentType != "image/webp" {
			if thumb, err := makeThumb(abs); err != nil {
				d.Log.Warn().Err(err).Str("file", rel).Msg("thumbnail failed")
			} else {
				doc["thumbPath"] = filepath.ToSlash(thumb)
			}
		}

		rec, err := d.Docs.Insert(c.Request.Context(), colMedia, doc)
		if err != nil {
			os.Remove(abs)
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, store.Flatten(rec))
	}
}

// makeThumb — миниатюра thumbWidth px по ширине рядом с оригиналом,
// возвращает путь относительно FilesRoot-корня исходника.
func makeThumb(abs string) (string, error) {
	img, err := imaging.Open(abs, imaging.AutoOrientation(true))
	if err != nil {
		return "", err
	}
	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	ext := filepath.Ext(abs)
	thumbAbs := strings.TrimSuffix(abs, ext) + "_thumb" + ext
	if err := imaging.Save(thumb, thumbAbs); err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(relOfAbs(abs)), filepath.Base(thumbAbs)), nil
}

// relOfAbs — yyyy/mm/file хвост абсолютного пути.
func relOfAbs(abs string) string {
	parts := strings.Split(filepath.ToSlash(abs), "/")
	if len(parts) < 3 {
		return filepath.Base(abs)
	}
	return filepath.Join(parts[len(parts)-3], parts[len(parts)-2], parts[len(parts)-1])
}

// GET /api/admin/media
func MediaListHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := parseListParams(c.Request.URL.Query())
		if len(q.Sort) == 0 {
			q.Sort = []store.SortKey{{Field: "created_at", Desc: true}}
		}
		recs, total, err := d.Docs.List(c.Request.Context(), colMedia, q)
		if err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		flatRecords(c, recs, total)
	}
}

// GET /api/media/:id/file — отдача файла; ?thumb=1 отдаёт миниатюру,
// если она есть.
func MediaFileHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Docs.Get(c.Request.Context(), colMedia, c.Param("id"))
		if err != nil {
			failNotFound(c, "Media")
			return
		}
		rel := docString(rec.Data, "path")
		if c.Query("thumb") == "1" {
			if tp := docString(rec.Data, "thumbPath"); tp != "" {
				rel = tp
			}
		}
		abs := filepath.Join(d.FilesRoot, filepath.FromSlash(rel))
		// без выхода за корень хранилища
		if root, err := filepath.Abs(d.FilesRoot); err == nil {
			if a, err := filepath.Abs(abs); err != nil || !strings.HasPrefix(a, root+string(filepath.Separator)) {
				failNotFound(c, "Media")
				return
			}
		}
		if _, err := os.Stat(abs); err != nil {
			failNotFound(c, "Media")
			return
		}
		c.Header("Content-Type", docString(rec.Data, "contentType"))
		c.File(abs)
	}
}

// DELETE /api/admin/media/:id — запись soft delete, файлы удаляются
// с диска сразу.
func MediaDeleteHandler(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rec, err := d.Docs.Get(ctx, colMedia, c.Param("id"))
		if err != nil {
			failNotFound(c, "Media")
			return
		}
		if err := d.Docs.SoftDelete(ctx, colMedia, rec.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				failNotFound(c, "Media")
				return
			}
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		for _, key := range []string{"path", "thumbPath"} {
			if rel := docString(rec.Data, key); rel != "" {
				if err := os.Remove(filepath.Join(d.FilesRoot, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
					d.Log.Warn().Err(err).Str("file", rel).Msg("media file remove failed")
				}
			}
		}
		c.Status(http.StatusNoContent)
	}
}
