package models

import (
	"time"
)

type Campaign struct {
	Slot     string    `json:"slot" gorm:"primaryKey;type:text"`
	Creator  string    `json:"creator" gorm:"type:text;index"`
	Deadline time.Time `json:"deadline" gorm:"type:timestamp with time zone;not null"`
	Goal     uint64    `json:"goal" gorm:"type:bigint;not null"`
	Total    uint64    `json:"total" gorm:"type:bigint;not null;default:0"`
	State    string    `json:"state" gorm:"type:text;not null;default:'open'"`
	Version  uint64    `json:"version" gorm:"type:bigint;not null;default:0"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null"`
	MDate    time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type Contributor struct {
	Slot     string `json:"slot" gorm:"primaryKey;type:text"`
	Campaign string `json:"campaign" gorm:"type:text;index;not null"`
	Owner    string `json:"owner" gorm:"type:text;index;not null"`
	Amount   uint64 `json:"amount" gorm:"type:bigint;not null;default:0"`
	State    string `json:"state" gorm:"type:text;not null;default:'active'"`
}

type Balance struct {
	Address string    `json:"address" gorm:"primaryKey;type:text"`
	Amount  uint64    `json:"amount" gorm:"type:bigint;not null;default:0"`
	MDate   time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type CommitLog struct {
	ID       string    `json:"id" gorm:"primaryKey;type:text"`
	Signer   string    `json:"signer" gorm:"type:text;index"`
	Schema   string    `json:"schema" gorm:"type:text"`
	Campaign string    `json:"campaign" gorm:"type:text;index"`
	Document string    `json:"document" gorm:"type:text"`
	Proof    string    `json:"proof" gorm:"type:text"`
	CDate    time.Time `json:"cdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}
