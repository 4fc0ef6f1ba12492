package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// paramID parses a positive integer path parameter
func paramID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

// queryBool returns nil when the parameter is absent
func queryBool(c *gin.Context, name string) (*bool, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &b, nil
}

func queryBoolDefault(c *gin.Context, name string, fallback bool) (bool, error) {
	b, err := queryBool(c, name)
	if err != nil || b == nil {
		return fallback, err
	}
	return *b, nil
}

// queryDate parses a YYYY-MM-DD parameter, nil when absent
func queryDate(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s, expected YYYY-MM-DD", name)
	}
	return &t, nil
}

func queryString(c *gin.Context, name string) *string {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func queryDateRange(c *gin.Context) (models.DateRange, error) {
	var dr models.DateRange
	var err error
	if dr.Start, err = queryDate(c, "start"); err != nil {
		return dr, err
	}
	if dr.End, err = queryDate(c, "end"); err != nil {
		return dr, err
	}
	dr.Limit, err = queryInt(c, "limit", 0)
	return dr, err
}

func queryPage(c *gin.Context, defaultLimit int) (int, int, error) {
	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(c, "offset", 0)
	return limit, offset, err
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func internalError(c *gin.Context, err error) {
	logger.WithError(err).WithField("path", c.Request.URL.Path).Errorf("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
