package repository

import (
	"errors"
	"fmt"
	"testing"

	"StorefrontAPI/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "transactions_one_completed_payment"}

	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("update: %w", dup)))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, []string{"pending", "processing"}, statusStrings(model.OpenStatuses))
	assert.Empty(t, statusStrings(nil))
}

func TestGatewayJSON(t *testing.T) {
	assert.Nil(t, gatewayJSON(nil))
	assert.Nil(t, gatewayJSON([]byte{}))
	assert.Nil(t, gatewayJSON([]byte("  \n")))
	assert.Equal(t, `{"id":"rf_1"}`, string(gatewayJSON([]byte(` {"id":"rf_1"} `))))
	assert.Equal(t, `"OK"`, string(gatewayJSON([]byte("OK"))))
	assert.Equal(t, `"<html>"`, string(gatewayJSON([]byte("<html>"))))
}
