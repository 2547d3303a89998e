// SPDX-License-Identifier: AGPL-3.0-only
package model

import (
	"encoding/json"

	"github.com/acupofespresso/mcp-client/internal/logging"
)

// PersistAndLogExchange saves an exchange to the store (best-effort) and debug-logs it.
func PersistAndLogExchange(store TranscriptStore, ex *Exchange, logger *logging.Logger) {
	if store != nil {
		if err := store.SaveExchange(ex); err != nil {
			logger.Warnf("Failed to persist exchange %s: %v", ex.ID, err)
		}
	}

	jsonData, err := json.MarshalIndent(ex, "", "  ")
	if err != nil {
		logger.Warnf("Failed to marshal exchange %s: %v", ex.ID, err)
	} else {
		logger.Debugf("Exchange %s: %s", ex.ID, string(jsonData))
	}
}
