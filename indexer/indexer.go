package indexer

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"aidchain/core/events"
	"aidchain/crypto"
	"aidchain/native/merchants"
)

// Indexer projects committed ledger events into relational tables so the
// read-heavy queries (merchants by category, credential owners, donor
// leaderboard, redemption exports) do not walk the state trie.
//
// Indexer implements events.Emitter. Projection failures are logged and never
// reach the ledger; the tables can be rebuilt by replaying the journal.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to the indexer database. Driver is "sqlite" or "postgres".
func Open(driver, dsn string, logger *slog.Logger) (*Indexer, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if strings.TrimSpace(dsn) == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db, logger)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, logger: logger.With("component", "indexer"), now: time.Now}, nil
}

// DB exposes the underlying connection.
func (ix *Indexer) DB() *gorm.DB { return ix.db }

// Close releases the connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit projects evt. Unknown events are ignored.
func (ix *Indexer) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if err := ix.apply(evt); err != nil {
		ix.logger.Error("index event", "type", evt.EventType(), "error", err)
	}
}

func (ix *Indexer) apply(evt events.Event) error {
	now := ix.now().UTC()
	switch e := evt.(type) {
	case events.VaultDeposited:
		return ix.db.Transaction(func(tx *gorm.DB) error {
			donor, err := loadDonor(tx, e.Donor)
			if err != nil {
				return err
			}
			donor.TotalDeposited = addAmount(donor.TotalDeposited, e.Amount)
			donor.Deposits++
			setPrincipal(donor, e.Balance, now)
			return tx.Save(donor).Error
		})
	case events.VaultWithdrawn:
		return ix.db.Transaction(func(tx *gorm.DB) error {
			donor, err := loadDonor(tx, e.Donor)
			if err != nil {
				return err
			}
			setPrincipal(donor, e.Balance, now)
			return tx.Save(donor).Error
		})
	case events.BadgeMinted:
		return ix.db.Transaction(func(tx *gorm.DB) error {
			donor, err := loadDonor(tx, e.Owner)
			if err != nil {
				return err
			}
			donor.Badges++
			donor.UpdatedAt = now
			return tx.Save(donor).Error
		})
	case events.MerchantRegistered:
		return ix.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&Merchant{
			Address:     crypto.Format(e.Merchant),
			Name:        e.Name,
			Category:    merchants.NormalizeCategory(e.Category),
			Status:      merchants.StatusPending.String(),
			TotalVolume: "0",
			UpdatedAt:   now,
		}).Error
	case events.MerchantStatusChanged:
		return ix.db.Model(&Merchant{}).Where("address = ?", crypto.Format(e.Merchant)).
			Updates(map[string]any{"status": strings.ToLower(e.To), "updated_at": now}).Error
	case events.MerchantRedemption:
		return ix.db.Model(&Merchant{}).Where("address = ?", crypto.Format(e.Merchant)).
			Updates(map[string]any{
				"total_redemptions": e.TotalRedemptions,
				"total_volume":      amountString(e.TotalVolume),
				"updated_at":        now,
			}).Error
	case events.ProgramCreated:
		return ix.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&Program{
			ID:        e.ID,
			Owner:     crypto.Format(e.Owner),
			Name:      e.Name,
			Category:  e.Category,
			Budget:    amountString(e.Budget),
			Allocated: "0",
			Spent:     "0",
			Active:    true,
			UpdatedAt: now,
		}).Error
	case events.ProgramAllocated:
		return ix.db.Model(&Program{}).Where("id = ?", e.ID).
			Updates(map[string]any{"allocated": amountString(e.Allocated), "updated_at": now}).Error
	case events.ProgramFunded:
		return ix.db.Model(&Program{}).Where("id = ?", e.ID).
			Updates(map[string]any{"spent": amountString(e.Spent), "updated_at": now}).Error
	case events.ProgramDeactivated:
		return ix.db.Model(&Program{}).Where("id = ?", e.ID).
			Updates(map[string]any{"active": false, "updated_at": now}).Error
	case events.VoucherRedeemed:
		return ix.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Redemption{
			ID:          e.RedemptionID,
			Beneficiary: crypto.Format(e.Beneficiary),
			Merchant:    crypto.Format(e.Merchant),
			ProgramID:   e.ProgramID,
			Amount:      amountString(e.Amount),
			ProofHash:   hex.EncodeToString(e.ProofHash),
			RedeemedAt:  time.Unix(e.Timestamp, 0).UTC(),
		}).Error
	case events.RedemptionVerified:
		return ix.db.Model(&Redemption{}).Where("id = ?", e.RedemptionID).Update("verified", true).Error
	case events.ImpactMinted:
		return ix.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&ImpactToken{
			TokenID:      e.TokenID,
			RedemptionID: e.RedemptionID,
			ProgramID:    e.ProgramID,
			Owner:        crypto.Format(e.Owner),
			Amount:       amountString(e.Amount),
			MetadataURI:  e.MetadataURI,
			ForSale:      true,
			Price:        amountString(e.Amount),
			UpdatedAt:    now,
		}).Error
	case events.ImpactTransferred:
		return ix.setTokenOwner(e.TokenID, e.To, now)
	case events.ImpactSold:
		return ix.setTokenOwner(e.TokenID, e.Buyer, now)
	case events.ImpactListed:
		return ix.db.Model(&ImpactToken{}).Where("token_id = ?", e.TokenID).
			Updates(map[string]any{"for_sale": true, "price": amountString(e.Price), "updated_at": now}).Error
	case events.ImpactDelisted:
		return ix.db.Model(&ImpactToken{}).Where("token_id = ?", e.TokenID).
			Updates(map[string]any{"for_sale": false, "updated_at": now}).Error
	}
	return nil
}

func (ix *Indexer) setTokenOwner(tokenID uint64, owner [20]byte, now time.Time) error {
	return ix.db.Model(&ImpactToken{}).Where("token_id = ?", tokenID).
		Updates(map[string]any{"owner": crypto.Format(owner), "for_sale": false, "updated_at": now}).Error
}

func loadDonor(tx *gorm.DB, addr [20]byte) (*Donor, error) {
	donor := &Donor{Address: crypto.Format(addr)}
	if err := tx.Where(Donor{Address: donor.Address}).
		Attrs(Donor{Principal: "0", TotalDeposited: "0"}).
		FirstOrInit(donor).Error; err != nil {
		return nil, err
	}
	return donor, nil
}

func setPrincipal(donor *Donor, balance *big.Int, now time.Time) {
	donor.Principal = amountString(balance)
	donor.Score = amountFloat(balance)
	donor.UpdatedAt = now
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func amountFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func addAmount(current string, delta *big.Int) string {
	total, ok := new(big.Int).SetString(strings.TrimSpace(current), 10)
	if !ok {
		total = new(big.Int)
	}
	if delta != nil {
		total.Add(total, delta)
	}
	return total.String()
}
