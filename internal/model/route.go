package model

import "time"

// Leg is one segment of a route between consecutive waypoints.
type Leg struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	DistanceNM float64 `json:"distance_nm"`
	BearingDeg float64 `json:"bearing_deg"`
}

// RoutePlan is a computed flight plan. len(Legs) == len(Waypoints)-1.
type RoutePlan struct {
	Waypoints        []Airport     `json:"waypoints"`
	Legs             []Leg         `json:"legs"`
	TotalDistanceNM  float64       `json:"total_distance_nm"`
	EstimatedTime    time.Duration `json:"estimated_time"`
	EstimatedFuelGal float64       `json:"estimated_fuel_gal"`
	CruiseSpeedKts   float64       `json:"cruise_speed_kts"`
	BurnRateGPH      float64       `json:"burn_rate_gph"`
}
