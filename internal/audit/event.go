package audit

import "time"

// Action - что произошло с точки зрения безопасности.
type Action string

const (
	ActionRegister  Action = "register"
	ActionLogin     Action = "login"
	ActionRefresh   Action = "refresh"
	ActionLogout    Action = "logout"
	ActionAuthorize Action = "authorize"
	ActionBlock     Action = "block"
	ActionUnblock   Action = "unblock"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeDenied  Outcome = "DENIED"
)

type Event struct {
	ID        string    `json:"id"`         // ULID: сортируется по времени
	RequestID string    `json:"request_id"` // Сквозной ID запроса
	UserID    string    `json:"user_id"`    // Кто (может быть пустым для неудачного логина)
	Email     string    `json:"email"`      // Для неудачных логинов: по какому адресу пытались
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason"` // Внутренняя причина. Клиенту не отдается
	RemoteIP  string    `json:"remote_ip"`
	Timestamp time.Time `json:"timestamp"`
}
