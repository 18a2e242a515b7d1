package rbac

import (
	"fmt"

	"github.com/medrex/clinic-portal/pkg/rbac"
)

// permissionTable maps each role to its level for every resource type
type permissionTable map[rbac.Role]map[rbac.ResourceType]rbac.PermissionLevel

// defaultTable is built once at package init and never written afterwards
var defaultTable = buildPermissionTable()

// roleDefaults returns the default level of role for resource. Both switches
// list every case so a new role or resource shows up as a missing row in tests.
func roleDefaults(role rbac.Role, resource rbac.ResourceType) rbac.PermissionLevel {
	switch role {
	case rbac.RoleAdministrator:
		return rbac.LevelFull

	case rbac.RoleDoctor:
		switch resource {
		case rbac.ResourcePatientRecord, rbac.ResourceAppointment, rbac.ResourceMedicalReport, rbac.ResourcePrescription:
			return rbac.LevelWrite
		case rbac.ResourceBilling, rbac.ResourceStaffRecord:
			return rbac.LevelRead
		case rbac.ResourceClinicSettings:
			return rbac.LevelNone
		}

	case rbac.RolePatient:
		switch resource {
		case rbac.ResourceAppointment:
			return rbac.LevelWrite
		case rbac.ResourcePatientRecord, rbac.ResourceBilling, rbac.ResourceMedicalReport, rbac.ResourcePrescription:
			return rbac.LevelRead
		case rbac.ResourceStaffRecord, rbac.ResourceClinicSettings:
			return rbac.LevelNone
		}

	case rbac.RoleStaff:
		switch resource {
		case rbac.ResourceAppointment, rbac.ResourceBilling:
			return rbac.LevelWrite
		case rbac.ResourcePatientRecord, rbac.ResourceMedicalReport, rbac.ResourceStaffRecord, rbac.ResourceClinicSettings:
			return rbac.LevelRead
		case rbac.ResourcePrescription:
			return rbac.LevelNone
		}

	case rbac.RoleGuest:
		return rbac.LevelNone
	}

	return rbac.LevelNone
}

func buildPermissionTable() permissionTable {
	table := make(permissionTable, len(rbac.AllRoles()))
	for _, role := range rbac.AllRoles() {
		row := make(map[rbac.ResourceType]rbac.PermissionLevel, len(rbac.AllResourceTypes()))
		for _, resource := range rbac.AllResourceTypes() {
			row[resource] = roleDefaults(role, resource)
		}
		table[role] = row
	}

	if err := table.validate(); err != nil {
		panic(err)
	}
	return table
}

// validate checks that every role has a level for every resource type
func (t permissionTable) validate() error {
	for _, role := range rbac.AllRoles() {
		row, ok := t[role]
		if !ok {
			return fmt.Errorf("permission table has no row for role %s", role)
		}
		for _, resource := range rbac.AllResourceTypes() {
			if _, ok := row[resource]; !ok {
				return fmt.Errorf("permission table row %s is missing resource %s", role, resource)
			}
		}
	}
	return nil
}

// row returns a fresh copy of the role's levels
func (t permissionTable) row(role rbac.Role) map[rbac.ResourceType]rbac.PermissionLevel {
	src, ok := t[role]
	out := make(map[rbac.ResourceType]rbac.PermissionLevel, len(rbac.AllResourceTypes()))
	for _, resource := range rbac.AllResourceTypes() {
		if ok {
			out[resource] = src[resource]
		} else {
			out[resource] = rbac.LevelNone
		}
	}
	return out
}
