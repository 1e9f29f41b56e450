package domain

// ResultCode is the closed set of outcome identifiers surfaced to the
// notification layer. The engine never formats user-facing text.
type ResultCode string

// EntityUpdateResult is returned by world-update, rotation and upgrade entry points.
type EntityUpdateResult string

// Entity update outcomes.
const (
	UpdateNoChange                          EntityUpdateResult = "no-change"
	UpdateUpdated                           EntityUpdateResult = "updated"
	UpdateCannotRotate                      EntityUpdateResult = "cannot-rotate"
	UpdateCannotFlipMultiPairUnderground    EntityUpdateResult = "cannot-flip-multi-pair-underground"
	UpdateCannotUpgradeMultiPairUnderground EntityUpdateResult = "cannot-upgrade-multi-pair-underground"
	UpdateCannotCreatePairUpgrade           EntityUpdateResult = "cannot-create-pair-upgrade"
	UpdateCannotUpgradeChangedPair          EntityUpdateResult = "cannot-upgrade-changed-pair"
)

// StageMoveResult is returned by first/last stage moves and remnant revival.
type StageMoveResult string

// Stage move outcomes.
const (
	StageMoveUpdated                       StageMoveResult = "updated"
	StageMoveNoChange                      StageMoveResult = "no-change"
	StageMoveCannotMoveUpgradedUnderground StageMoveResult = "cannot-move-upgraded-underground"
	StageMoveCannotMovePastLastStage       StageMoveResult = "cannot-move-past-last-stage"
	StageMoveCannotMoveBeforeFirstStage    StageMoveResult = "cannot-move-before-first-stage"
	StageMoveIntersectsAnotherEntity       StageMoveResult = "intersects-another-entity"
)

// CreateResult is returned when a physical object appears in the world.
type CreateResult string

// Creation outcomes.
const (
	CreateAdded            CreateResult = "added"
	CreateAlreadyExists    CreateResult = "already-exists"
	CreateMovedDown        CreateResult = "moved-down"
	CreateRevived          CreateResult = "revived"
	CreateCannotMoveDown   CreateResult = "cannot-move-down"
	CreateCannotRevive     CreateResult = "cannot-revive"
	CreateUnknownPrototype CreateResult = "unknown-prototype"
)

// DeleteResult is returned when a physical object disappears from the world.
type DeleteResult string

// Deletion outcomes.
const (
	DeleteDeleted                     DeleteResult = "deleted"
	DeleteMadeSettingsRemnant         DeleteResult = "made-settings-remnant"
	DeleteCannotDeleteAboveFirstStage DeleteResult = "cannot-delete-above-first-stage"
	DeleteNoChange                    DeleteResult = "no-change"
)

// WireUpdateResult is returned by wire reconciliation.
type WireUpdateResult string

// Wire outcomes.
const (
	WireNoChange               WireUpdateResult = "no-change"
	WireUpdated                WireUpdateResult = "updated"
	WireMaxConnectionsExceeded WireUpdateResult = "max-connections-exceeded"
)

// EntityMoveResult is returned by position relocation.
type EntityMoveResult string

// Relocation outcomes.
const (
	MoveMoved                 EntityMoveResult = "moved"
	MoveNoChange              EntityMoveResult = "no-change"
	MoveNotFirstStage         EntityMoveResult = "not-first-stage"
	MoveOverlapsAnotherEntity EntityMoveResult = "overlaps-another-entity"
	MoveCannotMovePaired      EntityMoveResult = "cannot-move-paired-underground"
)

// Severity captures how the notification layer should surface an outcome.
type Severity string

// Notification severities.
const (
	// SeverityBlock marks a rejected user action.
	SeverityBlock Severity = "block"
	// SeverityWarn marks an accepted action with a caveat.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Notification reports a non-trivial outcome to the notification sink.
type Notification struct {
	Code     ResultCode
	Severity Severity
	Entity   EntityID
	Stage    StageNumber
}

// Outcome is the tagged result of dispatching a world event. Exactly one of
// the typed fields matching Event is set.
type Outcome struct {
	Event  EventKind
	Update EntityUpdateResult
	Move   StageMoveResult
	Create CreateResult
	Delete DeleteResult
	Wire   WireUpdateResult
	Reloc  EntityMoveResult
	Entity EntityID
	Undo   *UndoRecord
}

// Code returns the result code carried by the outcome.
func (o Outcome) Code() ResultCode {
	switch {
	case o.Update != "":
		return ResultCode(o.Update)
	case o.Move != "":
		return ResultCode(o.Move)
	case o.Create != "":
		return ResultCode(o.Create)
	case o.Delete != "":
		return ResultCode(o.Delete)
	case o.Wire != "":
		return ResultCode(o.Wire)
	case o.Reloc != "":
		return ResultCode(o.Reloc)
	}
	return ""
}
