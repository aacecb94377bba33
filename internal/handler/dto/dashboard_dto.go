package dto

type DashboardSummaryResponse struct {
	TotalLicenses int64            `json:"totalLicenses"`
	StatusCounts  map[string]int64 `json:"statusCounts"`
}
