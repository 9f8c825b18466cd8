package sqlite

import "time"

type UserRow struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	Username           string `gorm:"uniqueIndex;not null"`
	PasswordHash       string `gorm:"not null"`
	Role               string `gorm:"not null;default:'user'"`
	MustChangePassword bool   `gorm:"not null;default:false"`
	CreatedAt          time.Time
}

func (UserRow) TableName() string { return "users" }

type LeadRow struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	OrganizationName  string `gorm:"index;not null"`
	ContactPersonName string `gorm:"not null;default:''"`
	ContactDetails    string `gorm:"not null;default:''"`
	Address           string `gorm:"not null;default:''"`
	Email             string `gorm:"not null;default:''"`
	SourceType        string `gorm:"index;not null;default:''"`
	Remarks           string `gorm:"not null;default:''"`
	CreatedAt         time.Time

	// folded copies for search, see lead.SearchKey
	OrganizationSearch string `gorm:"not null;default:''"`
	ContactSearch      string `gorm:"not null;default:''"`
}

func (LeadRow) TableName() string { return "lead_sources" }
