package app

import (
	"fmt"

	analysisDomain "github.com/felixgeelhaar/skinsight/internal/analysis/domain"
	analysisPersistence "github.com/felixgeelhaar/skinsight/internal/analysis/infrastructure/persistence"
	billingDomain "github.com/felixgeelhaar/skinsight/internal/billing/domain"
	billingPersistence "github.com/felixgeelhaar/skinsight/internal/billing/infrastructure/persistence"
	creditsDomain "github.com/felixgeelhaar/skinsight/internal/credits/domain"
	creditsPersistence "github.com/felixgeelhaar/skinsight/internal/credits/infrastructure/persistence"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/skinsight/internal/shared/infrastructure/outbox"
	webhooksDomain "github.com/felixgeelhaar/skinsight/internal/webhooks/domain"
	webhooksPersistence "github.com/felixgeelhaar/skinsight/internal/webhooks/infrastructure/persistence"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// Repositories groups every repository the services need.
type Repositories struct {
	Ledgers        creditsDomain.LedgerRepository
	Analyses       creditsDomain.AnalysisRepository
	Leads          analysisDomain.LeadRepository
	WebhookConfigs webhooksDomain.ConfigRepository
	WebhookLogs    webhooksDomain.LogRepository
	Payments       billingDomain.PaymentRepository
	BillingEvents  billingDomain.EventRepository
	Outbox         outbox.Repository
}

// Build creates all repositories for the configured driver.
func (f *RepositoryFactory) Build() (*Repositories, error) {
	switch f.driver {
	case database.DriverPostgres:
		return &Repositories{
			Ledgers:        creditsPersistence.NewPostgresLedgerRepository(f.conn),
			Analyses:       creditsPersistence.NewPostgresAnalysisRepository(f.conn),
			Leads:          analysisPersistence.NewPostgresLeadRepository(f.conn),
			WebhookConfigs: webhooksPersistence.NewPostgresConfigRepository(f.conn),
			WebhookLogs:    webhooksPersistence.NewPostgresLogRepository(f.conn),
			Payments:       billingPersistence.NewPostgresPaymentRepository(f.conn),
			BillingEvents:  billingPersistence.NewPostgresEventRepository(f.conn),
			Outbox:         outbox.NewPostgresRepository(f.conn),
		}, nil

	case database.DriverSQLite:
		return &Repositories{
			Ledgers:        creditsPersistence.NewSQLiteLedgerRepository(f.conn),
			Analyses:       creditsPersistence.NewSQLiteAnalysisRepository(f.conn),
			Leads:          analysisPersistence.NewSQLiteLeadRepository(f.conn),
			WebhookConfigs: webhooksPersistence.NewSQLiteConfigRepository(f.conn),
			WebhookLogs:    webhooksPersistence.NewSQLiteLogRepository(f.conn),
			Payments:       billingPersistence.NewSQLitePaymentRepository(f.conn),
			BillingEvents:  billingPersistence.NewSQLiteEventRepository(f.conn),
			Outbox:         outbox.NewSQLiteRepository(f.conn),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}
