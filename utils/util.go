package utils

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// FetchEnvVar returns environment variable if not found it will return the given default value
func FetchEnvVar(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if ok && value != "" {
		return value
	}
	log.WithFields(log.Fields{
		"environment variable key": key,
		"default":                  defaultValue,
	}).Debug("Environment variable not found returning default value")
	return defaultValue
}
