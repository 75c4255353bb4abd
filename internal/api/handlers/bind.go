package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/academyhq/tournament-engine/pkg/utils"
)

// bindStrict decodes the request body rejecting unknown fields, so typos like
// "scorring_type" fail loudly instead of being silently dropped.
func bindStrict(c *gin.Context, dest interface{}) error {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return utils.NewAppError(utils.ErrCodeValidation,
			"Invalid request body", err.Error())
	}
	return nil
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeValidation,
			"Invalid path parameter", name+"="+raw)
	}
	return uint(id), nil
}

// intQuery parses an optional numeric query parameter.
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, errors.New("missing")
	}
	return strconv.Atoi(raw)
}

// respondError maps AppErrors to their HTTP status and hides everything else
// behind a 500.
func respondError(c *gin.Context, err error) {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		utils.SendAppError(c, appErr)
		return
	}
	utils.SendInternalError(c, "Unexpected error")
}
