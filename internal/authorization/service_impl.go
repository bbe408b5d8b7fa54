package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectLedger   = "ledger"
	ObjectAuditLog = "audit_log"
)

const (
	ActionLedgerVerify = "ledger:verify"
	ActionLedgerGrant  = "ledger:grant"
	ActionAuditLogView = "audit_log:view"
)

const systemSubject = "system"

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, err := resolveActor(actor)
	if err != nil {
		return err
	}
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.audit(ctx, actor, "authorization.denied", object, action)
		s.log.Warn("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.audit(ctx, actor, "authorization.granted", object, action)
	}
	return nil
}

func resolveActor(actor Actor) (string, string, error) {
	if actor.System {
		return systemSubject, "role:system", nil
	}
	if actor.AccountID == 0 {
		return "", "", ErrInvalidActor
	}
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if role == "" {
		return "", "", ErrInvalidActor
	}
	return "account:" + actor.AccountID.String(), "role:" + role, nil
}

// ensureGrouping keeps exactly one role link per subject so a role change
// on the account takes effect on the next request.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) audit(ctx context.Context, actor Actor, action, object, capability string) {
	if s.auditSvc == nil {
		return
	}
	entry := auditdomain.Entry{
		Action:     action,
		TargetType: "authorization",
		TargetID:   object,
		Metadata: map[string]any{
			"object": object,
			"action": capability,
		},
	}
	if actor.System {
		entry.ActorType = auditdomain.ActorTypeSystem
	} else if actor.AccountID != 0 {
		accountID := actor.AccountID
		entry.AccountID = &accountID
		entry.ActorType = auditdomain.ActorTypeAccount
		entry.ActorID = accountID.String()
	}
	if err := s.auditSvc.Record(ctx, nil, entry); err != nil {
		s.log.Warn("failed to record authorization audit", zap.Error(err))
	}
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionLedgerGrant:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:admin", ObjectLedger, ActionLedgerVerify},
		{"role:admin", ObjectLedger, ActionLedgerGrant},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		{"role:system", ObjectLedger, ActionLedgerVerify},
		{"role:system", ObjectLedger, ActionLedgerGrant},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
