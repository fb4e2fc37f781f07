package gen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/adlschema/adlast"
)

func TestSchemaError(t *testing.T) {
	user := adlast.NewScopedName("app", "User")

	t.Run("Error message with all fields", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := NewSchemaError(user, "email", "invalid format", cause)

		assert.Contains(t, err.Error(), "adlschema: schema error")
		assert.Contains(t, err.Error(), "on app.User")
		assert.Contains(t, err.Error(), "field email")
		assert.Contains(t, err.Error(), "invalid format")
		assert.Contains(t, err.Error(), "underlying error")
	})

	t.Run("Error message with decl only", func(t *testing.T) {
		err := &SchemaError{Decl: user}
		assert.Contains(t, err.Error(), "app.User")
		assert.NotContains(t, err.Error(), "field")
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("root cause")
		err := NewSchemaError(user, "", "", cause)

		assert.Equal(t, cause, err.Unwrap())
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("Is matches ErrInvalidSchema", func(t *testing.T) {
		err := NewSchemaError(user, "", "", nil)
		assert.True(t, errors.Is(err, ErrInvalidSchema))
		assert.True(t, IsSchemaError(err))
		assert.False(t, IsSchemaError(errors.New("other")))
	})
}

func TestConfigError(t *testing.T) {
	t.Run("Error message with value", func(t *testing.T) {
		err := NewConfigError("Workers", -1, "must be positive")

		assert.Contains(t, err.Error(), "adlschema: config error")
		assert.Contains(t, err.Error(), "Workers")
		assert.Contains(t, err.Error(), "-1")
	})

	t.Run("Error message without value", func(t *testing.T) {
		err := NewConfigError("Target", nil, "cannot be empty")
		assert.NotContains(t, err.Error(), "value:")
	})

	t.Run("Is matches ErrMissingConfig", func(t *testing.T) {
		err := NewConfigError("Target", nil, "missing")
		assert.True(t, errors.Is(err, ErrMissingConfig))
		assert.True(t, IsConfigError(err))
		assert.False(t, IsConfigError(errors.New("other")))
	})
}

func TestLinkError(t *testing.T) {
	order := adlast.NewScopedName("app", "Order")
	customer := adlast.NewScopedName("crm", "Customer")

	t.Run("Error message with both ends", func(t *testing.T) {
		err := NewLinkError(order, customer, "customer", "no table", nil)
		assert.Contains(t, err.Error(), "on field customer")
		assert.Contains(t, err.Error(), "(app.Order -> crm.Customer)")
	})

	t.Run("Error message with source only", func(t *testing.T) {
		err := NewLinkError(order, adlast.ScopedName{}, "", "", nil)
		assert.Contains(t, err.Error(), "from app.Order")
	})

	t.Run("Is and Unwrap", func(t *testing.T) {
		cause := errors.New("cause")
		err := NewLinkError(order, customer, "customer", "", cause)
		assert.True(t, errors.Is(err, ErrInvalidLink))
		assert.True(t, errors.Is(err, cause))
		assert.True(t, IsLinkError(err))
	})
}

func TestGenerationError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewGenerationError("sql", "schema.sql", "write failed", cause)

	assert.Contains(t, err.Error(), "in phase sql")
	assert.Contains(t, err.Error(), "(file: schema.sql)")
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, errors.Is(err, ErrGenerationFailed))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsGenerationError(err))
	assert.False(t, IsGenerationError(nil))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("users", "email", "text", "type changed")

	assert.Contains(t, err.Error(), "on table users")
	assert.Contains(t, err.Error(), "column email")
	assert.Contains(t, err.Error(), "type changed")
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.True(t, IsValidationError(err))
}
