package domain

// Action names consumed by the permission oracle and the audit log.
type Action string

const (
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionUndelete Action = "undelete"
	ActionRevert   Action = "revert"
	ActionEnlist   Action = "enlist"
)

const (
	RequesterIDCtxKey   = "eb-requesterId"
	RequesterNameCtxKey = "eb-requesterName"
)
