package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/skinsight/adapter/cli"
)

type billingPaymentsInput struct {
	AccountID string `json:"account_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// paymentView is the tool representation of a payment.
type paymentView struct {
	ID            string `json:"id"`
	InvoiceID     string `json:"invoice_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	BillingReason string `json:"billing_reason,omitempty"`
	PaidAt        string `json:"paid_at"`
}

func registerBillingTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("billing.payments").
		Description("List the account's recorded payments, newest first").
		Handler(func(ctx context.Context, input billingPaymentsInput) ([]paymentView, error) {
			return listPayments(ctx, app, input)
		})

	return nil
}

func listPayments(ctx context.Context, app *cli.App, input billingPaymentsInput) ([]paymentView, error) {
	if app == nil || app.Billing == nil {
		return nil, errors.New("billing tools require database connection")
	}
	accountID, err := resolveAccount(app, input.AccountID)
	if err != nil {
		return nil, err
	}
	payments, err := app.Billing.Payments(ctx, accountID, input.Limit)
	if err != nil {
		return nil, err
	}
	views := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, paymentView{
			ID:            p.ID.String(),
			InvoiceID:     p.InvoiceID,
			Amount:        p.Amount.String(),
			Currency:      strings.ToUpper(p.Currency),
			Status:        p.Status,
			BillingReason: p.BillingReason,
			PaidAt:        p.PaidAt.UTC().Format(time.RFC3339),
		})
	}
	return views, nil
}
