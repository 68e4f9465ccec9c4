package middleware

import (
	"github.com/gin-gonic/gin"
)

const validatedBodyKey = "validatedBody"

// ValidateRequest binds the JSON body into a fresh value built by newObj and
// runs its binding rules. The bound value is stored for the handler, which
// reads it back with ValidatedBody.
func ValidateRequest[T any](newObj func() *T) gin.HandlerFunc {
	return func(c *gin.Context) {
		obj := newObj()
		if err := c.ShouldBindJSON(obj); err != nil {
			HandleBindingError(c, err)
			return
		}

		c.Set(validatedBodyKey, obj)
		c.Next()
	}
}

// ValidatedBody returns the body bound by ValidateRequest
func ValidatedBody[T any](c *gin.Context) (*T, bool) {
	v, ok := c.Get(validatedBodyKey)
	if !ok {
		return nil, false
	}
	obj, ok := v.(*T)
	return obj, ok
}
