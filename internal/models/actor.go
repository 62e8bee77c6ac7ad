package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor — вызывающий пользователь. Аутентификация живёт снаружи,
// сюда приходит уже проверенный идентификатор и роль.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess: владелец инспекции или администратор.
func (a Actor) CanAccess(in *Inspection) bool {
	if in == nil || a.UserID == "" {
		return false
	}
	return a.IsAdmin() || in.OwnerID == a.UserID
}
