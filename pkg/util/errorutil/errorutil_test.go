package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughWrapped(t *testing.T) {
	err := fmt.Errorf("return: %w", NewPartialWriteFailure("return_ticket", errors.New("boom"), map[string]any{
		"ticket_written": true,
	}))

	domainErr := ToDomainError(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, CodePartialWrite, domainErr.Code)
	assert.Equal(t, http.StatusBadGateway, domainErr.HTTPStatus)
	assert.Equal(t, "return_ticket", domainErr.Details["operation"])
	assert.Equal(t, true, domainErr.Details["ticket_written"])
	assert.True(t, IsCode(err, CodePartialWrite))
}

func TestToDomainError_NoRowsIsNotFound(t *testing.T) {
	domainErr := ToDomainError(fmt.Errorf("query: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeNotFound, domainErr.Code)
	assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)
}

func TestToDomainError_UnknownIsInternal(t *testing.T) {
	cause := errors.New("disk on fire")
	domainErr := ToDomainError(cause)
	assert.Equal(t, CodeInternal, domainErr.Code)
	assert.ErrorIs(t, domainErr, cause)
	assert.Nil(t, ToDomainError(nil))
}

func TestNewConfigurationMissing_ListsFields(t *testing.T) {
	err := NewConfigurationMissing([]string{"apiKey", "projectIds.staff"})
	domainErr := ToDomainError(err)
	assert.Equal(t, CodeConfigurationMissing, domainErr.Code)
	assert.Equal(t, []string{"apiKey", "projectIds.staff"}, domainErr.Details["fields"])
}

func TestRemoteWriteFailure_KeepsCause(t *testing.T) {
	cause := errors.New("503")
	err := NewRemoteWriteFailure("set_presence", cause, nil)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsCode(err, CodeRemoteRead))
	assert.True(t, IsCode(err, CodeRemoteWrite))
}
