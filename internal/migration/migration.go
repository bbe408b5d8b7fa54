package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	analyticsdomain "github.com/smallbiznis/tryon/internal/analytics/domain"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	authdomain "github.com/smallbiznis/tryon/internal/auth/domain"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/tryon/internal/payment/domain"
	productdomain "github.com/smallbiznis/tryon/internal/product/domain"
	widgetdomain "github.com/smallbiznis/tryon/internal/widget/domain"
	"github.com/smallbiznis/tryon/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&authdomain.Account{},
		&authdomain.Session{},
		&ledgerdomain.UsageEvent{},
		&ledgerdomain.CreditPurchase{},
		&paymentdomain.EventRecord{},
		&auditdomain.AuditLog{},
		&widgetdomain.WidgetConfig{},
		&productdomain.Product{},
		&analyticsdomain.WidgetEvent{},
	}
}

// Apply brings the schema up to date. Postgres uses the versioned SQL
// migrations; other dialects fall back to gorm AutoMigrate.
func Apply(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if strings.EqualFold(strings.TrimSpace(dbType), db.TypePostgres) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
