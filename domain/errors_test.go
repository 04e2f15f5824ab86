package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/todolog/domain"
)

func TestWrappedErrorsKeepTheirCode(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("append: %w", domain.WrapError(domain.ErrCodeUnavailable, "todo store unavailable", cause))

	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnavailable))
	assert.False(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, "append: todo store unavailable: connection refused", err.Error())
}

func TestNormalizeText(t *testing.T) {
	text, err := domain.NormalizeText("  buy milk ")
	assert.NoError(t, err)
	assert.Equal(t, "buy milk", text)

	_, err = domain.NormalizeText(" \t ")
	assert.ErrorIs(t, err, domain.ErrEmptyText)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestEventValidate(t *testing.T) {
	todo := domain.Todo{ID: 3, Text: "buy milk"}
	e := domain.NewEvent("evt-1", domain.EventCreated, todo, "alice", base)

	assert.NoError(t, e.Validate())
	assert.Equal(t, "3", e.TodoID)

	e.EventType = "renamed"
	assert.True(t, domain.IsDomainError(e.Validate(), domain.ErrCodeInvalid))

	e = domain.NewEvent("", domain.EventCreated, todo, "alice", base)
	assert.Error(t, e.Validate())
}

func TestNewAuditRecord(t *testing.T) {
	e := domain.NewEvent("evt-1", domain.EventToggled, domain.Todo{ID: 3, Text: "buy milk", Done: true}, "alice", base)

	rec := domain.NewAuditRecord(e, base.Add(1))

	assert.Equal(t, "evt-1", rec.EventID)
	assert.Equal(t, domain.EventToggled, rec.EventType)
	assert.Equal(t, "todo 3 toggled (done)", rec.Description)
	assert.Equal(t, "alice", rec.UserID)
}
