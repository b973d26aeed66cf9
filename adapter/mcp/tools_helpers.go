package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/skinsight/adapter/cli"
)

// accountInput lets a tool call target another account than the default.
type accountInput struct {
	AccountID string `json:"account_id,omitempty"`
}

func resolveAccount(app *cli.App, override string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}
	return app.CurrentAccount()
}

func parseUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.UUID{}, errors.New("id is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, errors.New("at least one id is required")
	}
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := parseUUID(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
