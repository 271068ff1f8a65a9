package careserver

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/http/mapper"
)

// pathID binds a UUID path parameter, answering 400 when it is malformed.
func pathID(c *gin.Context, name string) (string, bool) {
	raw, ok := pathString(c, name)
	if !ok {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid %s: %w", name, err))
		return "", false
	}
	return id.String(), true
}

// pathString binds a plain path parameter.
func pathString(c *gin.Context, name string) (string, bool) {
	var value string
	if err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, c.Param(name), &value); err != nil {
		badRequest(c, fmt.Errorf("invalid %s: %w", name, err))
		return "", false
	}
	return value, true
}

// statusFilter binds the optional, repeatable status query parameter.
func statusFilter(c *gin.Context) ([]string, bool) {
	var statuses []string
	if err := runtime.BindQueryParameter("form", true, false, "status", c.Request.URL.Query(), &statuses); err != nil {
		badRequest(c, fmt.Errorf("invalid status filter: %w", err))
		return nil, false
	}
	return statuses, true
}

// bindBody decodes and validates a JSON body. An empty body is accepted when
// allowEmpty is set so reason-only requests may omit it.
func bindBody(c *gin.Context, payload any, allowEmpty bool) bool {
	if c.Request.ContentLength == 0 && allowEmpty {
		return validBody(c, payload)
	}
	if err := c.ShouldBindJSON(payload); err != nil {
		badRequest(c, err)
		return false
	}
	return validBody(c, payload)
}

func validBody(c *gin.Context, payload any) bool {
	if fields := mapper.Validate(payload); len(fields) > 0 {
		validationFailed(c, fields)
		return false
	}
	return true
}
