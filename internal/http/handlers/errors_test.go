package handlers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.NotFound, fiber.StatusNotFound},
		{apperr.Forbidden, fiber.StatusForbidden},
		{apperr.InvalidState, fiber.StatusConflict},
		{apperr.Conflict, fiber.StatusConflict},
		{apperr.Blocked, fiber.StatusLocked},
		{apperr.UpstreamFailure, fiber.StatusBadGateway},
		{apperr.Validation, fiber.StatusBadRequest},
		{apperr.Internal, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}
