package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"coursesync/internal/crm"
	"coursesync/internal/logs"
	"coursesync/internal/models"
)

// ContactReconciler сопоставляет пользователя с контактом CRM по email.
// Закэшированный id — только подсказка: ему верим, если локация совпадает,
// проверка свежая и контакт по id действительно с тем же email.
type ContactReconciler struct {
	ttl time.Duration
	now func() time.Time
}

func NewContactReconciler(cacheTTL time.Duration) *ContactReconciler {
	return &ContactReconciler{ttl: cacheTTL, now: time.Now}
}

// Reconcile — найти или создать. Найденный контакт всё равно перезаписывается
// upsert'ом, чтобы протолкнуть актуальное имя. Upsert в CRM дедуплицирует по
// email; если при дублях он попал не в проверенный по id контакт, дальше
// работаем с проверенным: к нему привязаны теги и поля этого пользователя.
func (r *ContactReconciler) Reconcile(ctx context.Context, api crm.API, email, name string, hint models.ContactHint) (*crm.Contact, error) {
	found, err := r.lookup(ctx, api, email, hint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContactUpsert, err)
	}
	in := crm.ContactInput{Email: models.NormalizeEmail(email), Name: strings.TrimSpace(name)}
	in.FirstName, in.LastName = splitName(in.Name)
	c, err := api.CreateOrUpdateContact(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert %s: %w", ErrContactUpsert, in.Email, err)
	}
	if found != nil && found.ID != c.ID {
		logs.FromContext(ctx).WithFields(logrus.Fields{
			"location_id": api.LocationID(),
			"contact_id":  found.ID,
			"upserted_id": c.ID,
		}).Warn("duplicate contacts by email, keeping the verified one")
		return found, nil
	}
	return c, nil
}

// Find — только поиск, без создания. Нет контакта — ErrContactNotFound.
func (r *ContactReconciler) Find(ctx context.Context, api crm.API, email string, hint models.ContactHint) (*crm.Contact, error) {
	c, err := r.lookup(ctx, api, email, hint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContactUpsert, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s in location %s", ErrContactNotFound, models.NormalizeEmail(email), api.LocationID())
	}
	return c, nil
}

func (r *ContactReconciler) lookup(ctx context.Context, api crm.API, email string, hint models.ContactHint) (*crm.Contact, error) {
	email = models.NormalizeEmail(email)
	if hint.Fresh(api.LocationID(), r.ttl, r.now()) {
		c, err := api.GetContactByID(ctx, hint.ContactID)
		switch {
		case err == nil && strings.EqualFold(c.Email, email):
			return c, nil
		case err == nil, crm.IsNotFound(err):
			// подсказка устарела, ищем по email
		default:
			return nil, fmt.Errorf("get contact %s: %w", hint.ContactID, err)
		}
	}
	c, err := api.FindContactByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find contact %s: %w", email, err)
	}
	return c, nil
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
