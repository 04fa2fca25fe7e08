package model

import "time"

type DashboardStats struct {
	OccupiedUnits       int               `json:"occupied_units"`
	AvailableUnits      int               `json:"available_units"`
	MaintenanceUnits    int               `json:"maintenance_units"`
	PendingReleases     int               `json:"pending_releases"`
	UnclaimedBodies     int               `json:"unclaimed_bodies"`
	RecentRegistrations []DeceasedPatient `json:"recent_registrations"`
	PendingTasks        []Task            `json:"pending_tasks"`
	ActiveAlerts        []SystemAlert     `json:"active_alerts"`
	GeneratedAt         time.Time         `json:"generated_at"`
}

// ReportSummary aggregates activity for a reporting period.
type ReportSummary struct {
	Period              Period         `json:"period"`
	Registrations       int            `json:"registrations"`
	PatientsByStatus    map[string]int `json:"patients_by_status"`
	PatientsByWard      map[string]int `json:"patients_by_ward"`
	ReleasesByStatus    map[string]int `json:"releases_by_status"`
	PostmortemsByStatus map[string]int `json:"postmortems_by_status"`
	ForensicPostmortems int            `json:"forensic_postmortems"`
}

// CountRow is one bucket of a grouped count query.
type CountRow struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}
