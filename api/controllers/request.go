package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/dukapay-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}
	return userID, nil
}
