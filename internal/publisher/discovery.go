package publisher

import (
	"github.com/jgoulah/mindergas/pkg/models"
)

// discoveryConfig is a Home Assistant MQTT discovery payload
type discoveryConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic,omitempty"`
	CommandTopic      string `json:"command_topic,omitempty"`
	AvailabilityTopic string `json:"availability_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	Icon              string `json:"icon,omitempty"`
	Device            device `json:"device"`
}

type device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
}

var buttonNames = map[string]string{
	ButtonRefresh:     "Refresh Statistics",
	ButtonPostReading: "Post Meter Reading",
}

var buttonIcons = map[string]string{
	ButtonRefresh:     "mdi:refresh",
	ButtonPostReading: "mdi:upload",
}

func uniqueID(inst models.Installation, key string) string {
	return "mindergas_" + inst.ShortID() + "_" + key
}

func deviceFor(inst models.Installation) device {
	return device{
		Identifiers:  []string{"mindergas_" + inst.ID.String()},
		Name:         inst.DisplayName(),
		Manufacturer: "MinderGas",
		Model:        "API",
	}
}
