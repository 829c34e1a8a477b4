package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/row"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// listRows serves GET /v1/rows.
func (s *Server) listRows(c *gin.Context) {
	q, err := parseQueryString(c)
	if err != nil {
		writeError(c, fetch.BadRequestError(fetch.OpFetchPage, err))
		return
	}
	s.page(c, q)
}

// queryRows serves POST /v1/rows/query.
func (s *Server) queryRows(c *gin.Context) {
	q := queryir.Default()
	if err := c.ShouldBindJSON(&q); err != nil {
		writeError(c, fetch.BadRequestError(fetch.OpFetchPage, fmt.Errorf("decode query: %w", err)))
		return
	}
	s.page(c, q)
}

func (s *Server) page(c *gin.Context, q queryir.Query) {
	page, err := s.backend.Page(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// getRow serves GET /v1/rows/:id.
func (s *Server) getRow(c *gin.Context) {
	r, err := s.backend.Row(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// updateRow serves PATCH /v1/rows/:id.
func (s *Server) updateRow(c *gin.Context) {
	var patch row.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, fetch.BadRequestError(fetch.OpUpdateRow, fmt.Errorf("decode patch: %w", err)))
		return
	}
	if len(patch) == 0 {
		writeError(c, fetch.BadRequestError(fetch.OpUpdateRow, errors.New("patch is empty")))
		return
	}

	r, err := s.backend.UpdateRow(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// deleteRow serves DELETE /v1/rows/:id.
func (s *Server) deleteRow(c *gin.Context) {
	if err := s.backend.DeleteRow(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseQueryString builds a query from URL parameters, starting from the
// default query.
func parseQueryString(c *gin.Context) (queryir.Query, error) {
	q := queryir.Default()

	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("page: %w", err)
		}
		q.Page = n
	}
	if v := c.Query("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("pageSize: %w", err)
		}
		q.PageSize = n
	}
	if v := c.Query("sort"); v != "" {
		sort, err := queryir.ParseSort(v)
		if err != nil {
			return q, err
		}
		q.Sort = &sort
	}
	q.Search = c.Query("search")
	for _, raw := range c.QueryArray("filter") {
		f, err := queryir.ParseFilter(raw)
		if err != nil {
			return q, err
		}
		q.Filters = append(q.Filters, f)
	}
	return q, nil
}

// writeError maps err to its status and the error body. Errors outside the
// fetch taxonomy are 500 INTERNAL; a cancelled request gets no body.
func writeError(c *gin.Context, err error) {
	fe, ok := fetch.AsError(err)
	if !ok {
		if c.Request.Context().Err() != nil {
			c.AbortWithStatus(http.StatusRequestTimeout)
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL",
			Message: err.Error(),
		})
		return
	}

	if fe.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(fe.RetryAfter.Seconds()+0.999)))
	}
	c.AbortWithStatusJSON(fe.Status, ErrorResponse{
		Code:    string(fe.Code),
		Message: fe.Message,
		Details: fe.Details,
	})
}
