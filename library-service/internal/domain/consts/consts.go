package consts

import "time"

const DBCtxTimeout = 5 * time.Second

// gin context keys set by the auth middleware
const (
	UIDKey   = "uid"
	RoleKey  = "role"
	TokenKey = "token"
)
