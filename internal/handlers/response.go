package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/middleware"
	"gymhub_app_echo/internal/services"
)

var errInvalidBody = apperror.Validation("invalid request body")

// respond writes {success:true, ...payload}
func respond(c echo.Context, status int, payload echo.Map) error {
	body := echo.Map{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(status, body)
}

func ok(c echo.Context, payload echo.Map) error {
	return respond(c, http.StatusOK, payload)
}

func created(c echo.Context, payload echo.Map) error {
	return respond(c, http.StatusCreated, payload)
}

func message(c echo.Context, msg string) error {
	return ok(c, echo.Map{"message": msg})
}

// bindAndValidate decodes the request into dst and runs its validate tags
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return errInvalidBody
	}
	return c.Validate(dst)
}

// paramID parses a positive numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperror.Validationf("invalid %s", name)
	}
	return uint(id), nil
}

// pageQuery reads ?page= and ?limit=; the services clamp the values
func pageQuery(c echo.Context) services.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return services.Page{Page: page, Limit: limit}
}

// boolQuery returns nil when the parameter is absent or unparsable
func boolQuery(c echo.Context, name string) *bool {
	v, err := strconv.ParseBool(c.QueryParam(name))
	if err != nil {
		return nil
	}
	return &v
}

func currentUserID(c echo.Context) uint {
	return middleware.UserIDFrom(c)
}
