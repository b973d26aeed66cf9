package mcp

import (
	"errors"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/skinsight/adapter/cli"
)

// ToolDependencies provides services and context for MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	if err := registerCoreTools(srv, deps); err != nil {
		return err
	}
	if err := registerCreditTools(srv, deps); err != nil {
		return err
	}
	if err := registerAnalysisTools(srv, deps); err != nil {
		return err
	}
	if err := registerWebhookTools(srv, deps); err != nil {
		return err
	}
	if err := registerBillingTools(srv, deps); err != nil {
		return err
	}

	return nil
}
