package indexer

import (
	"time"

	"gorm.io/gorm"
)

// Merchant mirrors a merchant registry profile.
type Merchant struct {
	Address          string `gorm:"primaryKey;size:64"`
	Name             string `gorm:"size:256"`
	Category         string `gorm:"size:128;index"`
	Status           string `gorm:"size:32;index"`
	TotalRedemptions uint64
	TotalVolume      string `gorm:"size:80"`
	UpdatedAt        time.Time
}

// Program mirrors an aid program's budget counters.
type Program struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	Owner     string `gorm:"size:64;index"`
	Name      string `gorm:"size:256"`
	Category  string `gorm:"size:32;index"`
	Budget    string `gorm:"size:80"`
	Allocated string `gorm:"size:80"`
	Spent     string `gorm:"size:80"`
	Active    bool
	UpdatedAt time.Time
}

// Redemption is a settled voucher redemption.
type Redemption struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	Beneficiary string `gorm:"size:64;index"`
	Merchant    string `gorm:"size:64;index"`
	ProgramID   uint64 `gorm:"index"`
	Amount      string `gorm:"size:80"`
	ProofHash   string `gorm:"size:130"`
	RedeemedAt  time.Time
	Verified    bool
}

// ImpactToken tracks ownership and listing state of a proof-of-impact
// credential.
type ImpactToken struct {
	TokenID      uint64 `gorm:"primaryKey;autoIncrement:false"`
	RedemptionID uint64 `gorm:"uniqueIndex"`
	ProgramID    uint64 `gorm:"index"`
	Owner        string `gorm:"size:64;index"`
	Amount       string `gorm:"size:80"`
	MetadataURI  string `gorm:"size:256"`
	ForSale      bool   `gorm:"index"`
	Price        string `gorm:"size:80"`
	UpdatedAt    time.Time
}

// Donor aggregates vault activity per donor. Principal is exact; Score is a
// float copy used for ordering the leaderboard.
type Donor struct {
	Address        string `gorm:"primaryKey;size:64"`
	Principal      string `gorm:"size:80"`
	TotalDeposited string `gorm:"size:80"`
	Deposits       uint64
	Score          float64 `gorm:"index"`
	Badges         uint64
	UpdatedAt      time.Time
}

// AutoMigrate creates or updates every indexer table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Merchant{}, &Program{}, &Redemption{}, &ImpactToken{}, &Donor{})
}
