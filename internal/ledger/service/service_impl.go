package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	"github.com/smallbiznis/tryon/internal/clock"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/tryon/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const verifyBatchSize = 500

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

type balanceRow struct {
	InitialCredits int64
	Credits        int64
}

func (s *Service) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (*ledgerdomain.DebitResult, error) {
	if req.AccountID == 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}
	if req.Credits <= 0 {
		return nil, ledgerdomain.ErrInvalidCredits
	}
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return nil, ledgerdomain.ErrInvalidAction
	}

	now := s.clock.Now()
	event := ledgerdomain.UsageEvent{
		ID:          s.genID.Generate(),
		AccountID:   req.AccountID,
		CreditsUsed: req.Credits,
		Action:      action,
		Reference:   strings.TrimSpace(req.Reference),
		CreatedAt:   now,
	}

	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE accounts SET credits = credits - ?, updated_at = ?
			WHERE id = ? AND credits >= ?`,
			req.Credits, now, req.AccountID, req.Credits,
		)
		if result.Error != nil {
			return result.Error
		}
		switch {
		case result.RowsAffected == 0:
			row, err := loadBalance(tx, req.AccountID)
			if err != nil {
				return err
			}
			if row == nil {
				return ledgerdomain.ErrAccountNotFound
			}
			return ledgerdomain.ErrInsufficientCredits
		case result.RowsAffected > 1:
			return ledgerdomain.ErrLedgerInconsistency
		}

		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("append usage event: %w", err)
		}

		row, err := loadBalance(tx, req.AccountID)
		if err != nil {
			return err
		}
		if row == nil {
			return ledgerdomain.ErrLedgerInconsistency
		}
		balance = row.Credits
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ledgerdomain.ErrInsufficientCredits):
			s.obsMetrics.RecordDebitRejected(ctx, action, "insufficient_credits")
		case errors.Is(err, ledgerdomain.ErrAccountNotFound):
			s.obsMetrics.RecordDebitRejected(ctx, action, "account_not_found")
		case errors.Is(err, ledgerdomain.ErrLedgerInconsistency):
			s.log.Error("debit touched unexpected rows",
				zap.String("account_id", req.AccountID.String()),
				zap.Int64("credits", req.Credits),
			)
		}
		return nil, err
	}

	s.obsMetrics.RecordDebit(ctx, action, req.Credits)
	return &ledgerdomain.DebitResult{Event: event, Balance: balance}, nil
}

func (s *Service) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (*ledgerdomain.CreditResult, error) {
	purchase, err := s.newPurchase(req)
	if err != nil {
		return nil, err
	}

	var balance int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		balance, txErr = s.applyPurchase(tx, purchase)
		return txErr
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrPaymentAlreadyApplied) {
			s.log.Info("payment already applied",
				zap.String("provider", purchase.Provider),
				zap.String("payment_ref", purchase.PaymentRef),
			)
		}
		return nil, err
	}

	s.obsMetrics.RecordCreditPurchase(ctx, purchase.Provider, purchase.Credits)
	return &ledgerdomain.CreditResult{Purchase: *purchase, Balance: balance}, nil
}

func (s *Service) Grant(ctx context.Context, req ledgerdomain.GrantRequest) (*ledgerdomain.CreditResult, error) {
	description := strings.TrimSpace(req.Note)
	if description == "" {
		description = fmt.Sprintf("Manual grant of %d credits", req.Credits)
	}
	purchase, err := s.newPurchase(ledgerdomain.CreditRequest{
		AccountID:   req.AccountID,
		Provider:    ledgerdomain.ProviderManual,
		PaymentRef:  "grant_" + ulid.Make().String(),
		Amount:      decimal.Zero,
		Currency:    "usd",
		Credits:     req.Credits,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	var balance int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		balance, txErr = s.applyPurchase(tx, purchase)
		if txErr != nil {
			return txErr
		}
		if s.auditSvc == nil {
			return nil
		}
		accountID := req.AccountID
		actorType, actorID := auditdomain.ActorTypeAccount, req.ActorID
		if actorID == "" {
			actorType, actorID = auditdomain.ActorTypeSystem, "system"
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			AccountID:  &accountID,
			ActorType:  actorType,
			ActorID:    actorID,
			Action:     "ledger.credits_granted",
			TargetType: "credit_purchase",
			TargetID:   purchase.ID.String(),
			Metadata: map[string]any{
				"credits":     purchase.Credits,
				"payment_ref": purchase.PaymentRef,
				"note":        description,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordCreditPurchase(ctx, purchase.Provider, purchase.Credits)
	s.log.Info("credits granted",
		zap.String("account_id", req.AccountID.String()),
		zap.Int64("credits", purchase.Credits),
		zap.String("actor_id", req.ActorID),
	)
	return &ledgerdomain.CreditResult{Purchase: *purchase, Balance: balance}, nil
}

func (s *Service) newPurchase(req ledgerdomain.CreditRequest) (*ledgerdomain.CreditPurchase, error) {
	if req.AccountID == 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}
	paymentRef := strings.TrimSpace(req.PaymentRef)
	if paymentRef == "" {
		return nil, ledgerdomain.ErrInvalidPaymentRef
	}
	if req.Credits <= 0 {
		return nil, ledgerdomain.ErrInvalidCredits
	}
	if req.Amount.IsNegative() {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}
	if len(currency) != 3 {
		return nil, ledgerdomain.ErrInvalidCurrency
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = ledgerdomain.ProviderStripe
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Purchase of %d credits", req.Credits)
	}

	return &ledgerdomain.CreditPurchase{
		ID:            s.genID.Generate(),
		AccountID:     req.AccountID,
		Provider:      provider,
		PaymentRef:    paymentRef,
		ChargeRef:     strings.TrimSpace(req.ChargeRef),
		Amount:        req.Amount,
		Currency:      currency,
		Credits:       req.Credits,
		Status:        ledgerdomain.PurchaseStatusSucceeded,
		Description:   description,
		ReceiptNumber: ulid.Make().String(),
		CreatedAt:     s.clock.Now(),
	}, nil
}

// applyPurchase inserts the purchase and increments the balance inside tx.
func (s *Service) applyPurchase(tx *gorm.DB, purchase *ledgerdomain.CreditPurchase) (int64, error) {
	inserted := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_ref"}},
		DoNothing: true,
	}).Create(purchase)
	if inserted.Error != nil {
		return 0, inserted.Error
	}
	if inserted.RowsAffected == 0 {
		return 0, ledgerdomain.ErrPaymentAlreadyApplied
	}

	updated := tx.Exec(
		`UPDATE accounts SET credits = credits + ?, updated_at = ? WHERE id = ?`,
		purchase.Credits, purchase.CreatedAt, purchase.AccountID,
	)
	if updated.Error != nil {
		return 0, updated.Error
	}
	switch {
	case updated.RowsAffected == 0:
		return 0, ledgerdomain.ErrAccountNotFound
	case updated.RowsAffected > 1:
		return 0, ledgerdomain.ErrLedgerInconsistency
	}

	row, err := loadBalance(tx, purchase.AccountID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, ledgerdomain.ErrLedgerInconsistency
	}
	return row.Credits, nil
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (int64, error) {
	if accountID == 0 {
		return 0, ledgerdomain.ErrInvalidAccount
	}
	row, err := loadBalance(s.db.WithContext(ctx), accountID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, ledgerdomain.ErrAccountNotFound
	}
	return row.Credits, nil
}

func (s *Service) Verify(ctx context.Context, accountID snowflake.ID) (*ledgerdomain.Reconciliation, error) {
	if accountID == 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}

	var rec ledgerdomain.Reconciliation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := loadBalance(tx, accountID)
		if err != nil {
			return err
		}
		if row == nil {
			return ledgerdomain.ErrAccountNotFound
		}

		var purchased, used int64
		if err := tx.Raw(
			`SELECT COALESCE(SUM(credits), 0) FROM credit_purchases WHERE account_id = ?`,
			accountID,
		).Row().Scan(&purchased); err != nil {
			return err
		}
		if err := tx.Raw(
			`SELECT COALESCE(SUM(credits_used), 0) FROM usage_events WHERE account_id = ?`,
			accountID,
		).Row().Scan(&used); err != nil {
			return err
		}

		rec = ledgerdomain.Reconciliation{
			AccountID: accountID,
			Initial:   row.InitialCredits,
			Purchased: purchased,
			Used:      used,
			Derived:   row.InitialCredits + purchased - used,
			Stored:    row.Credits,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !rec.Consistent() {
		s.log.Error("ledger drift detected",
			zap.String("account_id", accountID.String()),
			zap.Int64("stored", rec.Stored),
			zap.Int64("derived", rec.Derived),
			zap.Int64("drift", rec.Drift()),
		)
		s.obsMetrics.RecordLedgerDrift(ctx, "verify")
		return &rec, ledgerdomain.ErrLedgerInconsistency
	}
	return &rec, nil
}

// VerifyAll reconciles every account. Drifted accounts are reported in the
// returned slice and the error wraps ErrLedgerInconsistency.
func (s *Service) VerifyAll(ctx context.Context) ([]ledgerdomain.Reconciliation, error) {
	var (
		results []ledgerdomain.Reconciliation
		drifted int
		lastID  snowflake.ID
	)
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		var ids []int64
		if err := s.db.WithContext(ctx).
			Table("accounts").
			Where("id > ?", lastID).
			Order("id asc").
			Limit(verifyBatchSize).
			Pluck("id", &ids).Error; err != nil {
			return results, err
		}
		if len(ids) == 0 {
			break
		}

		for _, raw := range ids {
			id := snowflake.ID(raw)
			rec, err := s.Verify(ctx, id)
			switch {
			case errors.Is(err, ledgerdomain.ErrLedgerInconsistency):
				drifted++
			case errors.Is(err, ledgerdomain.ErrAccountNotFound):
				continue
			case err != nil:
				return results, err
			}
			results = append(results, *rec)
		}
		lastID = snowflake.ID(ids[len(ids)-1])
	}

	if drifted > 0 {
		return results, fmt.Errorf("%w: %d of %d accounts drifted", ledgerdomain.ErrLedgerInconsistency, drifted, len(results))
	}
	return results, nil
}

func (s *Service) ListPurchases(ctx context.Context, accountID snowflake.ID, limit int) ([]ledgerdomain.CreditPurchase, error) {
	if accountID == 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	var purchases []ledgerdomain.CreditPurchase
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Service) GetPurchase(ctx context.Context, accountID, purchaseID snowflake.ID) (*ledgerdomain.CreditPurchase, error) {
	if accountID == 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}
	var purchase ledgerdomain.CreditPurchase
	err := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", purchaseID, accountID).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledgerdomain.ErrPurchaseNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

func loadBalance(db *gorm.DB, accountID snowflake.ID) (*balanceRow, error) {
	var rows []balanceRow
	if err := db.Raw(
		`SELECT initial_credits, credits FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
