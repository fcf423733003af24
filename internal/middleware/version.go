package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"rentdesk/internal/common"

	"github.com/labstack/echo/v4"
)

// VersionMiddleware resolves the /vN path prefix against the versions the API serves.
type VersionMiddleware struct {
	versions       []string
	defaultVersion string
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{versions: []string{"v1"}, defaultVersion: "v1"}
}

// VersionHeader stamps responses with the version that served them.
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-API-Version", version)
			return next(c)
		}
	}
}

// APIVersionResolver stores the request's version under "api_version". Paths
// without a version prefix get the default; unknown versions are a 404.
func (vm *VersionMiddleware) APIVersionResolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			version := extractVersionFromPath(c.Request().URL.Path)
			if version == "" {
				c.Set("api_version", vm.defaultVersion)
				return next(c)
			}

			if !slices.Contains(vm.versions, version) {
				return c.JSON(http.StatusNotFound, common.CreateErrorResponse("UNSUPPORTED_VERSION", "Unsupported API version",
					map[string]interface{}{"supported_versions": strings.Join(vm.versions, ", ")}))
			}
			c.Set("api_version", version)
			return next(c)
		}
	}
}

// extractVersionFromPath returns "vN" for paths like /vN or /vN/..., or "".
func extractVersionFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/v")
	if !ok {
		return ""
	}
	segment, _, _ := strings.Cut(rest, "/")
	n, err := strconv.Atoi(segment)
	if err != nil || n <= 0 {
		return ""
	}
	return "v" + strconv.Itoa(n)
}
