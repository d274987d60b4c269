package config

// Persistent state keys (Registry)
const (
	KeyMissionAltitude = "mission_altitude"
	KeySettleDelay     = "mission_settle_delay"
	KeyMissionTimeout  = "mission_timeout"
	KeyResetTimeline   = "mission_reset_timeline"
	KeyVehicleProvider = "vehicle_provider"
	KeySimLat          = "sim_start_lat"
	KeySimLon          = "sim_start_lon"
	KeySimHeading      = "sim_start_heading"
	KeyLastTarget      = "last_target"
)

// OverridableKeys lists the keys the config API may write.
var OverridableKeys = map[string]bool{
	KeyMissionAltitude: true,
	KeySettleDelay:     true,
	KeyMissionTimeout:  true,
	KeyResetTimeline:   true,
	KeySimLat:          true,
	KeySimLon:          true,
	KeySimHeading:      true,
}
