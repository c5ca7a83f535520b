package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"objgate/apperrors"
	"objgate/models"
	"objgate/services/objects"
	"objgate/storage"
	"objgate/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// ObjectController handles upload, download and listing
type ObjectController struct {
	objects        *objects.Service
	publicBaseURL  string
	maxUploadBytes int64
	logger         *log.Logger
}

// NewObjectController creates a new object controller. publicBaseURL may be
// empty, in which case links are derived from the incoming request.
// maxUploadBytes of 0 means unlimited.
func NewObjectController(svc *objects.Service, publicBaseURL string, maxUploadBytes int64) *ObjectController {
	return &ObjectController{
		objects:        svc,
		publicBaseURL:  strings.TrimRight(publicBaseURL, "/"),
		maxUploadBytes: maxUploadBytes,
		logger:         utils.NewCustomLogger("HTTP"),
	}
}

// Upload streams the raw request body into a new object and answers with
// its URL as plain text.
func (c *ObjectController) Upload(ctx *gin.Context) {
	body := ctx.Request.Body
	if c.maxUploadBytes > 0 {
		if ctx.Request.ContentLength > c.maxUploadBytes {
			ctx.JSON(http.StatusRequestEntityTooLarge, models.NewErrorResponse(
				fmt.Sprintf("Payload too large. Maximum size is %d bytes", c.maxUploadBytes)))
			return
		}
		body = http.MaxBytesReader(ctx.Writer, body, c.maxUploadBytes)
	}

	info, err := c.objects.Upload(ctx.Request.Context(), body, ctx.Request.ContentLength, ctx.GetHeader("Content-Type"))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusRequestEntityTooLarge, models.NewErrorResponse(
				fmt.Sprintf("Payload too large. Maximum size is %d bytes", tooLarge.Limit)))
			return
		}
		c.fail(ctx, "upload", "", err)
		return
	}

	ctx.String(http.StatusOK, "%s\n", c.objectURL(ctx, info.Key))
}

// Fetch streams the object named in the path to the client
func (c *ObjectController) Fetch(ctx *gin.Context) {
	key := objectKey(ctx)
	if key == "" {
		c.fail(ctx, "fetch", key, apperrors.NotFound(key))
		return
	}

	obj, err := c.objects.Open(ctx.Request.Context(), key)
	if err != nil {
		c.fail(ctx, "fetch", key, err)
		return
	}
	defer obj.Close()

	ctx.DataFromReader(http.StatusOK, obj.Info.Size, contentType(obj.Info), obj, objectHeaders(obj.Info))
}

// Check answers HEAD requests with the object's headers and no body
func (c *ObjectController) Check(ctx *gin.Context) {
	key := objectKey(ctx)
	if key == "" {
		ctx.Status(http.StatusNotFound)
		return
	}

	info, err := c.objects.Stat(ctx.Request.Context(), key)
	if err != nil {
		status := apperrors.HTTPStatus(err)
		if status != http.StatusNotFound {
			c.logger.Printf("Error checking object %s: %v", key, err)
		}
		ctx.Status(status)
		return
	}

	for k, v := range objectHeaders(*info) {
		ctx.Header(k, v)
	}
	ctx.Header("Content-Type", contentType(*info))
	ctx.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	ctx.Status(http.StatusOK)
}

// List renders every object in the bucket, as HTML by default or as JSON
// when the client asks for it.
func (c *ObjectController) List(ctx *gin.Context) {
	objs, err := c.objects.List(ctx.Request.Context())
	if err != nil {
		c.fail(ctx, "list", "", err)
		return
	}

	listing := models.ObjectListing{
		Bucket:  c.objects.Bucket(),
		Count:   len(objs),
		Objects: make([]models.ObjectSummary, 0, len(objs)),
	}
	for _, o := range objs {
		listing.Objects = append(listing.Objects, models.ObjectSummary{
			Key:          o.Key,
			Size:         o.Size,
			ETag:         o.ETag,
			LastModified: o.LastModified,
			URL:          c.objectURL(ctx, o.Key),
		})
	}

	format := ctx.NegotiateFormat(binding.MIMEHTML, binding.MIMEJSON)
	if ctx.Query("format") == "json" {
		format = binding.MIMEJSON
	}
	if format == binding.MIMEJSON {
		ctx.JSON(http.StatusOK, listing)
		return
	}
	ctx.HTML(http.StatusOK, "objects.html", listing)
}

// fail logs a per-request failure and converts it to an HTTP error. Missing
// objects are an expected outcome and are not logged.
func (c *ObjectController) fail(ctx *gin.Context, op, key string, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusNotFound {
		ctx.JSON(status, models.NewErrorResponse(fmt.Sprintf("Object %s not found", key)))
		return
	}

	c.logger.Printf("Error during %s (key=%q): %v", op, key, err)
	message := "Storage operation failed"
	if apperrors.CodeOf(err) == apperrors.CodeConnectivity {
		message = "Storage backend unreachable"
	}
	ctx.JSON(status, models.NewErrorResponse(message))
}

func (c *ObjectController) objectURL(ctx *gin.Context, key string) string {
	return baseURL(ctx, c.publicBaseURL) + objectPath(key)
}

// objectKey reads the key from the catch-all route parameter. Keys may
// contain slashes.
func objectKey(ctx *gin.Context) string {
	return strings.TrimPrefix(ctx.Param("name"), "/")
}

// objectPath escapes each segment of key so slashes stay path separators
func objectPath(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/objects/" + strings.Join(segments, "/")
}

// baseURL returns the configured public URL or one derived from the request
func baseURL(ctx *gin.Context, configured string) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	if proto := ctx.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + ctx.Request.Host
}

func contentType(info storage.ObjectInfo) string {
	if info.ContentType == "" {
		return "application/octet-stream"
	}
	return info.ContentType
}

func objectHeaders(info storage.ObjectInfo) map[string]string {
	headers := map[string]string{}
	if info.ETag != "" {
		headers["ETag"] = fmt.Sprintf("\"%s\"", strings.Trim(info.ETag, "\""))
	}
	if !info.LastModified.IsZero() {
		headers["Last-Modified"] = info.LastModified.UTC().Format(http.TimeFormat)
	}
	return headers
}
