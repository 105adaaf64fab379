package logger

import (
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/pkg/utils"
)

// MaskPhone logs a phone number with its middle digits hidden.
func MaskPhone(key, phone string) zap.Field {
	return zap.String(key, utils.MaskPhoneNumber(phone))
}

// Owner logs the tenant/workspace pair in a consistent shape.
func Owner(userID, workspaceID string) zap.Field {
	return zap.Dict("owner",
		zap.String("user_id", userID),
		zap.String("workspace_id", workspaceID),
	)
}
