package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/skinsight/adapter/cli"
	analysisApp "github.com/felixgeelhaar/skinsight/internal/analysis/application"
	analysisDomain "github.com/felixgeelhaar/skinsight/internal/analysis/domain"
)

var errAnalysisUnavailable = errors.New("analysis tools require database connection")

type analysisBeginInput struct {
	AccountID string `json:"account_id,omitempty"`
	ImageRef  string `json:"image_ref,omitempty"`
}

type analysisCompleteInput struct {
	AnalysisID string                 `json:"analysis_id" jsonschema:"required"`
	Name       string                 `json:"name" jsonschema:"required"`
	Email      string                 `json:"email" jsonschema:"required"`
	Phone      string                 `json:"phone" jsonschema:"required"`
	Result     *analysisDomain.Result `json:"result,omitempty"`
}

type leadsDeleteInput struct {
	AccountID string   `json:"account_id,omitempty"`
	LeadIDs   []string `json:"lead_ids" jsonschema:"required"`
}

// leadView is the tool representation of a lead.
type leadView struct {
	ID         string `json:"id"`
	AnalysisID string `json:"analysis_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

func registerAnalysisTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("analysis.begin").
		Description("Check credits and record a new analysis; returns its id").
		Handler(func(ctx context.Context, input analysisBeginInput) (map[string]string, error) {
			if app == nil || app.Analysis == nil {
				return nil, errAnalysisUnavailable
			}
			accountID, err := resolveAccount(app, input.AccountID)
			if err != nil {
				return nil, err
			}
			id, err := app.Analysis.BeginAnalysis(ctx, analysisApp.BeginAnalysisCommand{
				AccountID: accountID,
				ImageRef:  input.ImageRef,
			})
			if err != nil {
				return nil, err
			}
			return map[string]string{"analysis_id": id}, nil
		})

	srv.Tool("analysis.complete").
		Description("Submit the lead form: charges one credit, stores the lead and delivers the webhook").
		Handler(func(ctx context.Context, input analysisCompleteInput) (analysisApp.Completion, error) {
			return completeAnalysis(ctx, app, input)
		})

	srv.Tool("leads.list").
		Description("List captured leads, newest first").
		Handler(func(ctx context.Context, input accountInput) ([]leadView, error) {
			return listLeads(ctx, app, input)
		})

	srv.Tool("leads.delete").
		Description("Delete leads; nothing is deleted if any id is not owned by the account").
		Handler(func(ctx context.Context, input leadsDeleteInput) (map[string]int64, error) {
			if app == nil || app.Analysis == nil {
				return nil, errAnalysisUnavailable
			}
			accountID, err := resolveAccount(app, input.AccountID)
			if err != nil {
				return nil, err
			}
			ids, err := parseUUIDs(input.LeadIDs)
			if err != nil {
				return nil, err
			}
			deleted, err := app.Analysis.DeleteLeads(ctx, accountID, ids)
			if err != nil {
				return nil, err
			}
			return map[string]int64{"deleted": deleted}, nil
		})

	return nil
}

func completeAnalysis(ctx context.Context, app *cli.App, input analysisCompleteInput) (analysisApp.Completion, error) {
	if app == nil || app.Analysis == nil {
		return analysisApp.Completion{}, errAnalysisUnavailable
	}
	return app.Analysis.CompleteAnalysis(ctx, analysisApp.CompleteAnalysisCommand{
		AnalysisID: input.AnalysisID,
		Lead: analysisDomain.Contact{
			Name:  input.Name,
			Email: input.Email,
			Phone: input.Phone,
		},
		Result: input.Result,
	})
}

func listLeads(ctx context.Context, app *cli.App, input accountInput) ([]leadView, error) {
	if app == nil || app.Analysis == nil {
		return nil, errAnalysisUnavailable
	}
	accountID, err := resolveAccount(app, input.AccountID)
	if err != nil {
		return nil, err
	}
	leads, err := app.Analysis.ListLeads(ctx, accountID)
	if err != nil {
		return nil, err
	}
	views := make([]leadView, 0, len(leads))
	for _, lead := range leads {
		contact := lead.Contact()
		views = append(views, leadView{
			ID:         lead.ID().String(),
			AnalysisID: lead.AnalysisID(),
			Name:       contact.Name,
			Email:      contact.Email,
			Phone:      contact.Phone,
			Status:     string(lead.Status()),
			CreatedAt:  lead.CreatedAt().UTC().Format(time.RFC3339),
		})
	}
	return views, nil
}
