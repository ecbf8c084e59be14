package models

type StatusCount struct {
	Status ParcelStatus `json:"_id"`
	Count  int          `json:"count"`
}

type MonthKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type MonthCount struct {
	Month MonthKey `json:"_id"`
	Count int      `json:"count"`
}

type DashboardStats struct {
	TodayBookings      int           `json:"todayBookings"`
	TodayDeliveries    int           `json:"todayDeliveries"`
	FailedDeliveries   int           `json:"failedDeliveries"`
	CODTotal           float64       `json:"codTotal"`
	StatusDistribution []StatusCount `json:"statusDistribution"`
	MonthlyTrend       []MonthCount  `json:"monthlyTrend"`
	ActiveAgents       int           `json:"activeAgents"`
	TotalCustomers     int           `json:"totalCustomers"`
}
