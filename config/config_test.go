package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresenceValidate(t *testing.T) {
	ok := PresenceConfig{HeartbeatInterval: 20 * time.Second, StaleThreshold: 45 * time.Second}
	assert.NoError(t, ok.Validate())

	// threshold equal to twice the interval cannot survive one missed beat
	tight := PresenceConfig{HeartbeatInterval: 20 * time.Second, StaleThreshold: 40 * time.Second}
	assert.Error(t, tight.Validate())

	inverted := PresenceConfig{HeartbeatInterval: 30 * time.Second, StaleThreshold: 10 * time.Second}
	assert.Error(t, inverted.Validate())
}
