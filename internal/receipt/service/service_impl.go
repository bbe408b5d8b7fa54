package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/tryon/internal/auth/domain"
	"github.com/smallbiznis/tryon/internal/config"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	"github.com/smallbiznis/tryon/internal/receipt/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Ledger   ledgerdomain.Service
	Accounts authdomain.Service
	Renderer domain.Renderer
}

type Service struct {
	log      *zap.Logger
	ledger   ledgerdomain.Service
	accounts authdomain.Service
	renderer domain.Renderer
	issuer   string
	baseURL  string
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("receipt.service"),
		ledger:   p.Ledger,
		accounts: p.Accounts,
		renderer: p.Renderer,
		issuer:   p.Cfg.AppName,
		baseURL:  p.Cfg.PublicBaseURL,
	}
}

func (s *Service) Receipt(ctx context.Context, accountID, purchaseID snowflake.ID) (*domain.Document, error) {
	purchase, err := s.ledger.GetPurchase(ctx, accountID, purchaseID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	content, err := s.renderer.Render(ctx, domain.Data{
		ReceiptNumber: purchase.ReceiptNumber,
		PaidAt:        purchase.CreatedAt,
		BillToName:    account.Username,
		BillToEmail:   account.Email,
		Description:   purchase.Description,
		Credits:       purchase.Credits,
		Amount:        purchase.Amount,
		Currency:      purchase.Currency,
		Provider:      purchase.Provider,
		PaymentRef:    purchase.PaymentRef,
		IssuerName:    s.issuer,
		IssuerURL:     s.baseURL,
	})
	if err != nil {
		s.log.Error("render receipt", zap.String("purchase_id", purchaseID.String()), zap.Error(err))
		return nil, err
	}

	return &domain.Document{
		Filename:    "receipt-" + purchase.ReceiptNumber + ".pdf",
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}
