package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/medrex/clinic-portal/pkg/rbac"
)

// patientOwnedEndpoints maps each endpoint whose rows belong to individual
// patients to the row field holding the owning patient id
var patientOwnedEndpoints = map[string]string{
	"patients":     "id",
	"appointments": "patient_id",
	"bills":        "patient_id",
}

// scopeRows returns the rows of payload that perms may see. Cached payloads
// are shared by every caller, so rows are copied out rather than filtered in
// place.
func (s *Service) scopeRows(payload interface{}, ownerField string, perms rbac.UserPermissions) ([]map[string]interface{}, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("payload is not a list of records: %w", err)
	}

	visible := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		patientID, _ := row[ownerField].(string)
		clinicID, _ := row["clinic_id"].(string)
		if s.evaluator.CanViewPatientRecord(patientID, clinicID, perms) {
			visible = append(visible, row)
		}
	}
	return visible, nil
}
