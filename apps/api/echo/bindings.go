package echoapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

type (
	dataResponse struct {
		Data interface{} `json:"data"`
	}

	listResponse struct {
		Data       interface{}     `json:"data"`
		Pagination core.Pagination `json:"pagination"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

// bindJSON decodes the request body into dst. Unknown fields are rejected.
func bindJSON(ctx echo.Context, dst interface{}) error {
	dec := json.NewDecoder(ctx.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return core.NewValidationError(errors.New("request body is required"))
		}
		return core.NewValidationError(errors.Wrap(err, "invalid request body"))
	}
	return nil
}

// bindQuery binds the query params into dst through its `query` tags.
func bindQuery(ctx echo.Context, dst interface{}) error {
	if err := ctx.Bind(dst); err != nil {
		return errors.Wrap(err, "binding query params")
	}
	return nil
}

// boolParam parses an optional boolean query param.
func boolParam(ctx echo.Context, name string) (*bool, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(name, "must be true or false")
	}
	return &b, nil
}

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, dataResponse{Data: data})
}

func respondOK(ctx echo.Context, data interface{}) error {
	return respond(ctx, http.StatusOK, data)
}

func respondCreated(ctx echo.Context, data interface{}) error {
	return respond(ctx, http.StatusCreated, data)
}

func paginated[T any](ctx echo.Context, items []T, page core.Page, total int) error {
	if items == nil {
		items = []T{}
	}
	return ctx.JSON(http.StatusOK, listResponse{Data: items, Pagination: core.NewPagination(page, total)})
}
