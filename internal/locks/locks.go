// Package locks сериализует записи в CRM по одному контакту.
package locks

import (
	"context"
	"errors"
	"strings"
)

// ErrBusy — не дождались освобождения ключа за отведённое время.
var ErrBusy = errors.New("lock is held by another writer")

// Locker выдаёт эксклюзивный доступ по ключу. unlock вызывается ровно один раз.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ContactKey — один писатель на человека внутри одной локации.
func ContactKey(locationID, email string) string {
	return "crm:contact:" + locationID + ":" + strings.ToLower(strings.TrimSpace(email))
}
