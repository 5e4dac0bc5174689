package tenancy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"coursesync/internal/crm"
	"coursesync/internal/logs"
	"coursesync/internal/models"
)

// Agency — агентские операции CRM, нужные для white-label.
type Agency interface {
	CreateLocation(ctx context.Context, in crm.LocationInput) (*crm.Location, error)
	DeleteLocation(ctx context.Context, id string) error
	LocationToken(ctx context.Context, locationID string) (*crm.LocationToken, error)
}

type TenantRepo interface {
	TenantGetter
	Create(ctx context.Context, t *models.TenantAccount) error
	Delete(ctx context.Context, id string) error
}

type UserAssigner interface {
	AssignTenant(ctx context.Context, userID, tenantID string) error
}

type ProvisionInput struct {
	OwnerUserID string
	Name        string
	Email       string
	Branding    map[string]any
}

// Provisioner заводит и удаляет white-label субаккаунты.
type Provisioner struct {
	agency   Agency
	tenants  TenantRepo
	users    UserAssigner
	registry *ClientRegistry
}

// NewProvisioner: agency может быть nil, если агентский токен не настроен;
// тогда Provision и Delete отвечают ErrConfiguration.
func NewProvisioner(agency Agency, tenants TenantRepo, users UserAssigner, registry *ClientRegistry) *Provisioner {
	return &Provisioner{agency: agency, tenants: tenants, users: users, registry: registry}
}

func (p *Provisioner) Provision(ctx context.Context, in ProvisionInput) (*models.TenantAccount, error) {
	if p.agency == nil {
		return nil, fmt.Errorf("%w: agency credential is not set", ErrConfiguration)
	}
	log := logs.Logger.WithFields(logrus.Fields{"owner_user_id": in.OwnerUserID, "name": in.Name})

	loc, err := p.agency.CreateLocation(ctx, crm.LocationInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Settings: in.Branding,
	})
	if err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}
	log = log.WithField("location_id", loc.ID)

	tok, err := p.agency.LocationToken(ctx, loc.ID)
	if err != nil {
		p.rollback(ctx, log, loc.ID)
		return nil, fmt.Errorf("issue location token: %w", err)
	}

	t := &models.TenantAccount{
		OwnerUserID:        in.OwnerUserID,
		Name:               strings.TrimSpace(in.Name),
		ExternalLocationID: loc.ID,
		ExternalCredential: tok.AccessToken,
		Status:             models.TenantStatusActive,
	}
	if len(in.Branding) > 0 {
		raw, err := json.Marshal(in.Branding)
		if err != nil {
			p.rollback(ctx, log, loc.ID)
			return nil, fmt.Errorf("encode branding: %w", err)
		}
		t.Branding = datatypes.JSON(raw)
	}
	if err := p.tenants.Create(ctx, t); err != nil {
		p.rollback(ctx, log, loc.ID)
		return nil, fmt.Errorf("save tenant: %w", err)
	}
	if err := p.users.AssignTenant(ctx, in.OwnerUserID, t.ID); err != nil {
		return nil, fmt.Errorf("assign owner %s: %w", in.OwnerUserID, err)
	}

	log.WithField("tenant_id", t.ID).Info("tenant provisioned")
	return t, nil
}

// rollback — локация без записи тенанта никому не нужна.
func (p *Provisioner) rollback(ctx context.Context, log *logrus.Entry, locationID string) {
	if err := p.agency.DeleteLocation(ctx, locationID); err != nil {
		log.Warnf("rollback: delete location: %v", err)
	}
}

// Delete удаляет локацию в CRM и запись тенанта. Кэш CRM у привязанных
// пользователей не чистится: резолвер уведёт их на общую локацию,
// а несовпадение локаций заставит реконсилер заново искать контакт по email.
func (p *Provisioner) Delete(ctx context.Context, tenantID string) error {
	if p.agency == nil {
		return fmt.Errorf("%w: agency credential is not set", ErrConfiguration)
	}
	t, err := p.tenants.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	if t.ExternalLocationID != "" {
		if err := p.agency.DeleteLocation(ctx, t.ExternalLocationID); err != nil && !crm.IsNotFound(err) {
			return fmt.Errorf("delete location %s: %w", t.ExternalLocationID, err)
		}
	}
	if err := p.tenants.Delete(ctx, tenantID); err != nil {
		return fmt.Errorf("delete tenant %s: %w", tenantID, err)
	}
	p.registry.Invalidate(tenantID)

	logs.Logger.WithFields(logrus.Fields{
		"tenant_id":   tenantID,
		"location_id": t.ExternalLocationID,
	}).Info("tenant deleted")
	return nil
}

// AssignUser привязывает пользователя к существующему тенанту.
func (p *Provisioner) AssignUser(ctx context.Context, tenantID, userID string) error {
	t, err := p.tenants.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	if t.Status != models.TenantStatusActive {
		return fmt.Errorf("%w: tenant %s is %s", ErrTenantInactive, tenantID, t.Status)
	}
	if err := p.users.AssignTenant(ctx, userID, tenantID); err != nil {
		return fmt.Errorf("assign user %s: %w", userID, err)
	}
	return nil
}
