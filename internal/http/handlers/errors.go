package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sillsdev/silauto-backend/internal/http/response"
	"github.com/sillsdev/silauto-backend/internal/platform/apierr"
	"github.com/sillsdev/silauto-backend/internal/services"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// respondServiceError maps a service error onto the error envelope. Errors that
// did not come through apierr are reported as 500 with fallbackCode.
func respondServiceError(c *gin.Context, fallbackCode string, err error) {
	status, code, err := apierr.From(err, fallbackCode)
	var ref *services.ReferenceError
	var verr *services.ValidationError
	switch {
	case errors.As(err, &ref):
		response.RespondErrorDetails(c, status, code, err, gin.H{ref.Entity: ref.IDs})
	case errors.As(err, &verr):
		response.RespondErrorDetails(c, status, code, err, gin.H{"problems": verr.Problems})
	default:
		response.RespondError(c, status, code, err)
	}
}

// pagination reads skip and limit, defaulting limit to 100.
func pagination(c *gin.Context) (skip, limit int, err error) {
	skip, err = queryInt(c, "skip", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err = queryInt(c, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if skip < 0 || limit < 0 {
		return 0, 0, errors.New("skip and limit must not be negative")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return skip, limit, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}
