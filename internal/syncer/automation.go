package syncer

import (
	"context"
	"fmt"

	"coursesync/internal/crm"
)

// TriggerAutomation — один вызов; для оркестратора шаг необязательный.
func TriggerAutomation(ctx context.Context, api crm.API, contactID, automationID string) error {
	if err := api.TriggerAutomation(ctx, contactID, automationID); err != nil {
		return fmt.Errorf("trigger automation %s for %s: %w", automationID, contactID, err)
	}
	return nil
}
