package domain

// AggregateRoot is the consistency boundary that records domain events
// and carries an optimistic concurrency version.
type AggregateRoot interface {
	DomainEvents() []DomainEvent
	ClearDomainEvents()
	AddDomainEvent(event DomainEvent)
	Version() int
}

// BaseAggregateRoot provides common aggregate functionality.
// Identity is left to the embedding aggregate.
type BaseAggregateRoot struct {
	domainEvents []DomainEvent
	version      int
}

// NewBaseAggregateRoot creates a new aggregate root at version 0.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		domainEvents: make([]DomainEvent, 0),
	}
}

// RehydrateBaseAggregateRoot recreates aggregate state loaded from storage.
func RehydrateBaseAggregateRoot(version int) BaseAggregateRoot {
	return BaseAggregateRoot{
		domainEvents: make([]DomainEvent, 0),
		version:      version,
	}
}

// DomainEvents returns all uncommitted domain events.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents removes all uncommitted domain events.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = make([]DomainEvent, 0)
}

// AddDomainEvent adds a domain event to the aggregate.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// Version returns the version the aggregate was loaded at.
func (a *BaseAggregateRoot) Version() int {
	return a.version
}

// SetVersion sets the aggregate version after a successful save.
func (a *BaseAggregateRoot) SetVersion(version int) {
	a.version = version
}
