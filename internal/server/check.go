package server

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/pkg/logger"
)

// CheckHandler serves the check endpoint: one install-and-check cycle per
// request.
type CheckHandler struct {
	checker   checker.Checker
	versions  []int
	whitelist *config.Whitelist
}

func NewCheckHandler(c checker.Checker, versions []int, w *config.Whitelist) *CheckHandler {
	versions = append([]int(nil), versions...)
	sort.Ints(versions)
	return &CheckHandler{
		checker:   c,
		versions:  versions,
		whitelist: w,
	}
}

func (h *CheckHandler) Register(r gin.IRouter) {
	r.GET("/", h.Check)
	r.GET("/health_check", h.HealthCheck)
}

func (h *CheckHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "hello world")
}

// Check handles GET /?package=a[&package=b]&python-version=3.
func (h *CheckHandler) Check(c *gin.Context) {
	packages := c.QueryArray("package")
	if len(packages) == 0 {
		c.Error(NewError(http.StatusBadRequest, "Request must specify at least one 'package' parameter"))
		return
	}
	if len(packages) > 2 {
		c.Error(NewError(http.StatusBadRequest, "Request must specify at most two 'package' parameters"))
		return
	}

	var unknown []string
	for _, p := range packages {
		if !h.whitelist.IsTracked(p) {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		c.Error(NewError(http.StatusBadRequest,
			"Request contains unrecognized packages: "+strings.Join(unknown, ", ")))
		return
	}

	raw := c.Query("python-version")
	if raw == "" {
		c.Error(NewError(http.StatusBadRequest, "Request must specify 'python-version' parameter"))
		return
	}
	version, err := strconv.Atoi(raw)
	if err != nil || !h.supports(version) {
		c.Error(NewError(http.StatusBadRequest,
			"Invalid Python version specified. Must be one of: "+h.versionList()))
		return
	}

	res, err := h.checker.Check(c.Request.Context(), version, packages)
	if err != nil {
		var pipErr *checker.PipError
		if errors.As(err, &pipErr) {
			logger.Error("Probe failed:", pipErr)
			c.Error(NewError(http.StatusInternalServerError, pipErr.Error()))
			return
		}
		logger.Error("Check failed:", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, checker.NewCheckResponse(res))
}

func (h *CheckHandler) supports(version int) bool {
	for _, v := range h.versions {
		if v == version {
			return true
		}
	}
	return false
}

func (h *CheckHandler) versionList() string {
	parts := make([]string, len(h.versions))
	for i, v := range h.versions {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
