package core

import "cultureplan/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Sample             = domain.Sample
	ObjectType         = domain.ObjectType
	Item               = domain.Item
	Collection         = domain.Collection
	Association        = domain.Association
	Coordinate         = domain.Coordinate
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntitySample      = domain.EntitySample
	EntityObjectType  = domain.EntityObjectType
	EntityItem        = domain.EntityItem
	EntityCollection  = domain.EntityCollection
	EntityAssociation = domain.EntityAssociation
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
