package server

import (
	"crypto/sha1"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/purelind/pycompat-check/internal/badge"
	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/status"
)

// BadgeHandler serves badge images and the JSON behind them. Every request
// for a tracked package also starts a background refresh, so the next one
// sees fresh results.
type BadgeHandler struct {
	svc *badge.Service
}

func NewBadgeHandler(svc *badge.Service) *BadgeHandler {
	return &BadgeHandler{svc: svc}
}

func (h *BadgeHandler) Register(r gin.IRouter) {
	r.GET("/", h.Greetings)

	r.GET("/one_badge_image", h.OneBadgeImage)
	r.GET("/one_badge_target", h.OneBadgeTarget)

	self := r.Group("/self_compatibility_badge")
	self.GET("/image", h.compatImage(badge.SelfCompatibility))
	self.GET("/target", h.compatTarget(badge.SelfCompatibility))

	google := r.Group("/google_compatibility_badge")
	google.GET("/image", h.compatImage(badge.GoogleCompatibility))
	google.GET("/target", h.compatTarget(badge.GoogleCompatibility))

	dep := r.Group("/self_dependency_badge")
	dep.GET("/image", h.DependencyImage)
	dep.GET("/target", h.DependencyTarget)
}

func (h *BadgeHandler) Greetings(c *gin.Context) {
	c.String(http.StatusOK, "hello world")
}

// pkg reads the required package parameter and schedules a refresh.
func (h *BadgeHandler) pkg(c *gin.Context) (string, bool) {
	pkg := c.Query("package")
	if pkg == "" {
		c.Error(NewError(http.StatusBadRequest, "Request must specify 'package' parameter"))
		return "", false
	}
	h.svc.RefreshAsync(pkg)
	return pkg, true
}

func (h *BadgeHandler) OneBadgeImage(c *gin.Context) {
	pkg, ok := h.pkg(c)
	if !ok {
		return
	}
	sum, err := h.svc.Lookup(c.Request.Context(), pkg)
	if err != nil {
		c.Error(err)
		return
	}
	name := badge.DisplayName(pkg, c.Query("badge_name"))
	if name == badge.GitHubHeadName && sum.Timestamp != "" {
		name = fmt.Sprintf("%s %s", name, sum.Timestamp)
	}
	h.render(c, name, sum.Status)
}

func (h *BadgeHandler) OneBadgeTarget(c *gin.Context) {
	pkg, ok := h.pkg(c)
	if !ok {
		return
	}
	sum, err := h.svc.Lookup(c.Request.Context(), pkg)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *BadgeHandler) compatImage(kind badge.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		pkg, ok := h.pkg(c)
		if !ok {
			return
		}
		res, err := h.svc.Compat(c.Request.Context(), pkg, kind)
		if err != nil {
			c.Error(err)
			return
		}
		h.render(c, badge.DisplayName(pkg, c.Query("badge_name")), h.svc.DisplayStatus(pkg, res))
	}
}

func (h *BadgeHandler) compatTarget(kind badge.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		pkg, ok := h.pkg(c)
		if !ok {
			return
		}
		res, err := h.svc.Compat(c.Request.Context(), pkg, kind)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"package": pkg,
			"purl":    checker.NewPackage(pkg).PURL(),
			"result":  res,
		})
	}
}

func (h *BadgeHandler) DependencyImage(c *gin.Context) {
	pkg, ok := h.pkg(c)
	if !ok {
		return
	}
	res, err := h.svc.DependencyResult(c.Request.Context(), pkg)
	if err != nil {
		c.Error(err)
		return
	}
	h.render(c, badge.DisplayName(pkg, c.Query("badge_name")), res.Status)
}

func (h *BadgeHandler) DependencyTarget(c *gin.Context) {
	pkg, ok := h.pkg(c)
	if !ok {
		return
	}
	res, err := h.svc.DependencyResult(c.Request.Context(), pkg)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"package": pkg,
		"purl":    checker.NewPackage(pkg).PURL(),
		"result":  res,
	})
}

func (h *BadgeHandler) render(c *gin.Context, name string, st status.Status) {
	svg, err := badge.Render(name, st)
	if err != nil {
		c.Error(err)
		return
	}
	etag := fmt.Sprintf(`"%x"`, sha1.Sum(svg))
	c.Header("Cache-Control", "no-cache")
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, badge.SVGContentType, svg)
}
