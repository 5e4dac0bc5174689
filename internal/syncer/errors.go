package syncer

import (
	"errors"

	"coursesync/internal/tenancy"
)

// Классы ошибок синхронизации. Конкретная причина заворачивается следом:
// fmt.Errorf("%w: ...: %w", ErrX, cause), проверка — errors.Is.
var (
	ErrConfiguration   = tenancy.ErrConfiguration
	ErrNotFound        = errors.New("not found")
	ErrContactUpsert   = errors.New("contact upsert failed")
	ErrContactNotFound = errors.New("contact not found")
	ErrAccessGrant     = errors.New("access grant failed")
	ErrSpendUpdate     = errors.New("spend update failed")
	ErrOptionalStep    = errors.New("optional step failed")
	ErrAuditWrite      = errors.New("audit write failed")

	ErrPurchaseNotCompleted = errors.New("purchase is not completed")
)
