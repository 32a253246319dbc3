package validator

import (
	"fmt"
	"os"
	"sync"

	"ai-character-chat-simulator/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	mutex  sync.RWMutex
	doc    *openapi3.T
	router routers.Router
}

// New builds a validator from an in-memory document
func New(data []byte) (*OpenAPIValidator, error) {
	v := &OpenAPIValidator{}
	if err := v.load(data); err != nil {
		return nil, err
	}
	return v, nil
}

// NewFromFile builds a validator from the document at path
func NewFromFile(path string) (*OpenAPIValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI schema from %s: %w", path, err)
	}
	return New(data)
}

func (v *OpenAPIValidator) load(data []byte) error {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI schema: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.doc = doc
	v.router = router
	return nil
}

// Reload swaps in a new document
func (v *OpenAPIValidator) Reload(data []byte) error {
	return v.load(data)
}

// Middleware rejects requests that do not match their documented operation.
// Routes missing from the document pass through unchecked.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(errors.NewBadRequestError("INVALID_REQUEST", "Request does not match the API schema").
				WithDetails(err.Error()).
				Wrap(err))
			c.Abort()
			return
		}

		c.Next()
	}
}
