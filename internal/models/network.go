package models

import "time"

// NetworkMode режим работы терминала
type NetworkMode string

const (
	NetworkModeOnline  NetworkMode = "online"  // облако доступно
	NetworkModeOffline NetworkMode = "offline" // нет ни облака, ни локальной сети
	NetworkModeHybrid  NetworkMode = "hybrid"  // облако недоступно, локальная сеть есть
)

// NetworkState снимок состояния сети. Живет только в памяти процесса,
// пишется исключительно connectivity monitor.
type NetworkState struct {
	LastCheck             time.Time   `json:"last_check"`
	Mode                  NetworkMode `json:"mode"`
	CloudAvailable        bool        `json:"cloud_available"`
	LocalNetworkAvailable bool        `json:"local_network_available"`
}

// ModeFor derives the network mode from the two availability flags
func ModeFor(cloud, local bool) NetworkMode {
	switch {
	case cloud:
		return NetworkModeOnline
	case local:
		return NetworkModeHybrid
	default:
		return NetworkModeOffline
	}
}
