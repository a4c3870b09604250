package models

import "strings"

type Department struct {
	Name string
	Code string
}

// Departments is the fixed list complaints are routed to.
var Departments = []Department{
	{Name: "Municipal Corporation", Code: "MC"},
	{Name: "Public Works Department", Code: "PW"},
	{Name: "Water Resources", Code: "WR"},
	{Name: "Electricity Board", Code: "EB"},
	{Name: "Police Department", Code: "PD"},
	{Name: "Health Department", Code: "HD"},
	{Name: "Transport Department", Code: "TD"},
	{Name: "Urban Development", Code: "UD"},
	{Name: "Forest Department", Code: "FD"},
	{Name: "General Administration", Code: "GA"},
}

// DefaultDepartmentCode is used for departments outside the fixed list.
const DefaultDepartmentCode = "GC"

// DepartmentNames returns the department names in routing order.
func DepartmentNames() []string {
	names := make([]string, len(Departments))
	for i, d := range Departments {
		names[i] = d.Name
	}
	return names
}

// DepartmentCode looks a department up case-insensitively.
func DepartmentCode(name string) string {
	name = strings.TrimSpace(name)
	for _, d := range Departments {
		if strings.EqualFold(d.Name, name) {
			return d.Code
		}
	}
	return DefaultDepartmentCode
}

func IsKnownDepartment(name string) bool {
	return DepartmentCode(name) != DefaultDepartmentCode
}
