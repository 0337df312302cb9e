package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type imageURLRequest struct {
	URL       string `json:"url"`
	ProductID *int64 `json:"productId"`
}

// uploadImage accepts a multipart "file" or a JSON {url, productId}
func (h *Handler) uploadImage(c *gin.Context) {
	var (
		img *models.Image
		err error
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		var productID *int64
		if raw := c.PostForm("productId"); raw != "" {
			id, perr := strconv.ParseInt(raw, 10, 64)
			if perr != nil {
				h.writeError(c, apperr.InvalidFields("productId"))
				return
			}
			productID = &id
		}

		data, rerr := readFormFile(c, "file")
		if rerr != nil {
			h.writeError(c, rerr)
			return
		}
		img, err = h.svc.Images.Upload(c.Request.Context(), data, productID)
	} else {
		var req imageURLRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			badBody(c, berr)
			return
		}
		if req.URL == "" {
			h.writeError(c, apperr.MissingFields("url"))
			return
		}
		img, err = h.svc.Images.UploadFromURL(c.Request.Context(), req.URL, req.ProductID)
	}

	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

// readFormFile reads at most one byte past the size limit so oversized files still fail validation
func readFormFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, apperr.MissingFields(field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, service.MaxImageBytes+1))
}

func (h *Handler) listImages(c *gin.Context) {
	productID, err := queryInt64(c, "productId")
	if err != nil {
		h.writeError(c, err)
		return
	}
	images, err := h.svc.Images.List(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (h *Handler) deleteImage(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.svc.Images.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
