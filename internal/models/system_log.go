package models

import "time"

type LogType string

const (
	LogLogin         LogType = "LOGIN"
	LogRegister      LogType = "REGISTER"
	LogTestComplete  LogType = "TEST_COMPLETE"
	LogWhatsAppClick LogType = "WHATSAPP_CLICK"
	LogAdminAction   LogType = "ADMIN_ACTION"
)

func (t LogType) Valid() bool {
	switch t {
	case LogLogin, LogRegister, LogTestComplete, LogWhatsAppClick, LogAdminAction:
		return true
	}
	return false
}

type SystemLog struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Type      LogType   `gorm:"type:varchar(32);index" json:"type"`
	UserID    string    `gorm:"index" json:"userId,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}
