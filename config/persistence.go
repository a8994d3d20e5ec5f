package config

import (
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/quasilyte/gdata"
)

// SavedSettings represents the client settings stored on disk
type SavedSettings struct {
	Address             string  `json:"address"`
	Name                string  `json:"name"`
	CorrectionThreshold float64 `json:"correctionThreshold,omitempty"`
	SmoothSpeed         float64 `json:"smoothSpeed,omitempty"`
}

const settingsKey = "settings"

var logger = log.WithPrefix("config")

var gdataManager *gdata.Manager

// InitPersistence initializes the gdata manager for settings storage
func InitPersistence(appName string) error {
	m, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		logger.Warn("could not initialize persistence", "err", err)
		return err
	}
	gdataManager = m
	return nil
}

// LoadSettings loads settings from disk. It returns nil when persistence is
// unavailable or nothing has been saved yet.
func LoadSettings() (*SavedSettings, error) {
	if gdataManager == nil {
		return nil, nil
	}

	data, err := gdataManager.LoadItem(settingsKey)
	if err != nil {
		logger.Warn("could not load settings", "err", err)
		return nil, nil
	}
	if data == nil {
		return nil, nil
	}

	var settings SavedSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		logger.Warn("could not parse saved settings", "err", err)
		return nil, err
	}
	return &settings, nil
}

// SaveSettings saves settings to disk
func SaveSettings(s *SavedSettings) error {
	if gdataManager == nil {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := gdataManager.SaveItem(settingsKey, data); err != nil {
		logger.Warn("could not save settings", "err", err)
		return err
	}
	return nil
}

// ApplySettings copies saved values over the package defaults.
func ApplySettings(s *SavedSettings) {
	if s == nil {
		return
	}
	if s.Address != "" {
		Client.Address = s.Address
	}
	if s.Name != "" {
		Client.Name = s.Name
	}
	if s.CorrectionThreshold > 0 {
		Multiplayer.CorrectionThreshold = s.CorrectionThreshold
	}
	if s.SmoothSpeed > 0 {
		Multiplayer.SmoothSpeed = s.SmoothSpeed
	}
}

// CurrentSettings captures the persisted subset of the active config.
func CurrentSettings() *SavedSettings {
	return &SavedSettings{
		Address:             Client.Address,
		Name:                Client.Name,
		CorrectionThreshold: Multiplayer.CorrectionThreshold,
		SmoothSpeed:         Multiplayer.SmoothSpeed,
	}
}
